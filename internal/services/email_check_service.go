package services

import (
	"bufio"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/logger"

	"leadgame/internal/models"
)

//go:embed disposable_domains.txt
var disposableDomainList string

// Deliverability failures, in check order.
var (
	ErrMissingEmail     = errors.New("missing email")
	ErrInvalidFormat    = errors.New("invalid email format")
	ErrDisposableDomain = errors.New("disposable email domain")
	ErrNoMailExchange   = errors.New("email domain does not accept mail")
)

// Quoted or dot-atom local part; dot-separated domain labels ending in a TLD
// of at least two letters.
var deliverableEmailPattern = regexp.MustCompile(
	`^(([^<>()\[\]\\.,;:\s@"]+(\.[^<>()\[\]\\.,;:\s@"]+)*)|(".+"))@(([a-zA-Z0-9-]+\.)+[a-zA-Z]{2,})$`,
)

// MXResolver looks up mail exchange records. *net.Resolver satisfies it.
type MXResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// EmailCheckService performs best-effort deliverability checks.
type EmailCheckService struct {
	resolver   MXResolver
	disposable map[string]struct{}
	strict     bool
	timeout    time.Duration
}

// NewEmailCheckService creates a checker. When strict is false a failed MX
// lookup is logged and the address is still reported deliverable.
func NewEmailCheckService(resolver MXResolver, strict bool, timeout time.Duration, extraDisposable ...string) *EmailCheckService {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	disposable := parseDomainList(disposableDomainList)
	for _, d := range extraDisposable {
		disposable[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	return &EmailCheckService{
		resolver:   resolver,
		disposable: disposable,
		strict:     strict,
		timeout:    timeout,
	}
}

func parseDomainList(list string) map[string]struct{} {
	domains := make(map[string]struct{})
	// The embedded list is a string in memory; scanning it cannot fail.
	names, _ := ReadDomainList(strings.NewReader(list))
	for _, d := range names {
		domains[d] = struct{}{}
	}
	return domains
}

// ReadDomainList reads one domain per line, skipping blanks and # comments.
// It accepts the disposable-email-domains blocklist format as is.
func ReadDomainList(r io.Reader) ([]string, error) {
	var domains []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domains = append(domains, strings.ToLower(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read domain list: %w", err)
	}
	return domains, nil
}

// LoadDomainListFile reads a domain list from path.
func LoadDomainListFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open domain list: %w", err)
	}
	defer f.Close()
	return ReadDomainList(f)
}

// IsDisposable reports whether the domain belongs to a throwaway mail provider.
func (s *EmailCheckService) IsDisposable(domain string) bool {
	_, ok := s.disposable[strings.ToLower(domain)]
	return ok
}

// Check runs the checks in order and stops at the first failure. The returned
// error is one of the Err* values above, possibly wrapped.
func (s *EmailCheckService) Check(ctx context.Context, email string) (*models.DeliverabilityResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrMissingEmail
	}

	if !deliverableEmailPattern.MatchString(email) {
		return nil, ErrInvalidFormat
	}

	domain := email[strings.LastIndex(email, "@")+1:]
	if s.IsDisposable(domain) {
		return nil, ErrDisposableDomain
	}

	if err := s.lookupMX(ctx, domain); err != nil {
		if s.strict {
			logger.Warningf("MX lookup failed for %s: %v", domain, err)
			return nil, fmt.Errorf("%w: %v", ErrNoMailExchange, err)
		}
		logger.Warningf("MX lookup failed for %s, accepting in lenient mode: %v", domain, err)
		return &models.DeliverabilityResult{
			Deliverable: true,
			Reason:      "mail exchange lookup skipped",
		}, nil
	}

	return &models.DeliverabilityResult{Deliverable: true}, nil
}

func (s *EmailCheckService) lookupMX(ctx context.Context, domain string) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	records, err := s.resolver.LookupMX(ctx, domain)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errors.New("no MX records found")
	}
	return nil
}
