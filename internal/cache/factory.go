package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LeafFactory builds a single (non-composite) Backend for one topology
// token. ParseTopology hands every token, "none" included, to the factory;
// it handles only an empty spec string itself.
type LeafFactory func(token string) (Backend, error)

// Options bundles the knobs a leaf factory needs.
type Options struct {
	MaxItems   int
	DefaultTTL time.Duration
	Redis      redis.UniversalClient
	Compress   bool
}

// DefaultLeafFactory resolves "none", "memory"/"mem", and anything else as
// a distributed (Redis) back-end name, per spec.md §6's
// PREPROCESSING_CACHE_BACKEND grammar.
func DefaultLeafFactory(opts Options) LeafFactory {
	return func(token string) (Backend, error) {
		switch strings.ToLower(token) {
		case "none", "":
			return NewNoopBackend(), nil
		case "memory", "mem":
			return NewMemoryBackend(opts.MaxItems, opts.DefaultTTL)
		default:
			if opts.Redis == nil {
				return nil, fmt.Errorf("cache: topology token %q requires a distributed store but none is configured", token)
			}
			return NewDistributedBackend(opts.Redis, opts.Compress), nil
		}
	}
}

// ParseTopology builds a Backend hierarchy from a "<"-separated config
// string such as "mem<dist<mem". Per spec.md §4.4, construction proceeds
// right-to-left so the rightmost token becomes the innermost L2: for
// "a<b<c" the result is Composite{L1: a, L2: Composite{L1: b, L2: c}}.
// A single-token string (including "none") returns a bare leaf backend with
// no composite wrapper.
func ParseTopology(spec string, leaf LeafFactory) (Backend, error) {
	tokens := strings.Split(spec, "<")
	for i, t := range tokens {
		tokens[i] = strings.TrimSpace(t)
	}
	if len(tokens) == 0 || (len(tokens) == 1 && tokens[0] == "") {
		return NewNoopBackend(), nil
	}

	current, err := leaf(tokens[len(tokens)-1])
	if err != nil {
		return nil, err
	}
	for i := len(tokens) - 2; i >= 0; i-- {
		l1, err := leaf(tokens[i])
		if err != nil {
			return nil, err
		}
		current = NewComposite(l1, current)
	}
	return current, nil
}
