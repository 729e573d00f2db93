package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"decrypto/internal/domain"
)

// Word list names, in the order the reset fallback chain tries them.
const (
	WordlistEnglish = "wordlist-eng.txt"
	WordlistItalian = "wordlist-ita.txt"
	WordlistLegacy  = "wordlist.txt"
)

// WordSource supplies candidate secret words for a named list. Callers
// must de-duplicate and verify they got enough words.
type WordSource interface {
	Fetch(ctx context.Context, name string) ([]string, error)
}

// wordlistFor maps a room language onto its primary word list.
func wordlistFor(language string) string {
	if strings.HasPrefix(strings.ToLower(language), "en") {
		return WordlistEnglish
	}
	return WordlistItalian
}

// oppositeWordlist returns the other language's list.
func oppositeWordlist(name string) string {
	if name == WordlistEnglish {
		return WordlistItalian
	}
	return WordlistEnglish
}

// wordlistChain is the fallback order for drawing words: the primary
// list, the opposite language, then the legacy default.
func wordlistChain(primary string) []string {
	return []string{primary, oppositeWordlist(primary), WordlistLegacy}
}

// HTTPWordSource fetches newline-delimited word lists over HTTP, tolerant
// of comment lines and HTML noise (a misconfigured host serving an error
// page instead of the list). Lists are cached after first successful
// fetch.
type HTTPWordSource struct {
	BaseURL string
	Client  *http.Client

	mu    sync.Mutex
	cache map[string][]string
}

// NewHTTPWordSource creates a word source rooted at baseURL.
func NewHTTPWordSource(baseURL string) *HTTPWordSource {
	return &HTTPWordSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
		cache:   make(map[string][]string),
	}
}

// Fetch downloads and parses the named list, serving from cache when
// available.
func (s *HTTPWordSource) Fetch(ctx context.Context, name string) ([]string, error) {
	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/"+name, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", domain.ErrWordSource, name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch %s: status %d", domain.ErrWordSource, name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrWordSource, name, err)
	}

	words := parseWordList(string(body))
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: list %s empty", domain.ErrWordSource, name)
	}

	s.mu.Lock()
	s.cache[name] = words
	s.mu.Unlock()
	return words, nil
}

// parseWordList splits a raw list into candidate words, dropping blanks,
// comments, and anything that looks like markup.
func parseWordList(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html") {
			continue
		}
		if strings.Contains(line, "<") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// StaticWordSource serves fixed lists, for tests and offline use.
type StaticWordSource map[string][]string

// Fetch returns the named list or ErrWordSource when absent.
func (s StaticWordSource) Fetch(_ context.Context, name string) ([]string, error) {
	words, ok := s[name]
	if !ok || len(words) == 0 {
		return nil, fmt.Errorf("%w: list %s not available", domain.ErrWordSource, name)
	}
	return words, nil
}
