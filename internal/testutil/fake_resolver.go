package testutil

import (
	"context"
	"net"
	"strings"
	"sync"
)

// FakeMXResolver answers MX lookups from a fixed table. Unknown domains fail
// the way a real resolver does for NXDOMAIN.
type FakeMXResolver struct {
	mu      sync.Mutex
	Records map[string][]*net.MX
	Lookups []string
}

func NewFakeMXResolver(domains ...string) *FakeMXResolver {
	r := &FakeMXResolver{Records: make(map[string][]*net.MX)}
	for _, d := range domains {
		r.Records[d] = []*net.MX{{Host: "mx." + d + ".", Pref: 10}}
	}
	return r
}

func (r *FakeMXResolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Lookups = append(r.Lookups, name)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, ok := r.Records[strings.ToLower(name)]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
	}
	return records, nil
}
