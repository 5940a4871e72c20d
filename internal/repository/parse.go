package repository

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Parser turns a repository token into a Repository. It returns nil, nil
// when the token is not meant for it.
type Parser interface {
	Parse(token string) (Repository, error)
}

type ParserFunc func(token string) (Repository, error)

func (f ParserFunc) Parse(token string) (Repository, error) {
	return f(token)
}

// UnparsableTokenError is returned when no parser accepts a token.
type UnparsableTokenError struct {
	Token string
}

func (e *UnparsableTokenError) Error() string {
	return fmt.Sprintf("unparsable repository token %q: expected \"#<index>\", \"file:<path>\", \"http(s)://<url>\" or \"git+<url>[#<ref>]\"", e.Token)
}

// Parsers is a chain of parsers tried in order. The first repository
// returned wins.
type Parsers []Parser

func (ps Parsers) Parse(token string) (Repository, error) {
	for _, p := range ps {
		repo, err := p.Parse(token)
		if err != nil {
			return nil, err
		}
		if repo != nil {
			return repo, nil
		}
	}
	return nil, &UnparsableTokenError{Token: token}
}

// ParseAll parses every token, keeping their order.
func (ps Parsers) ParseAll(tokens []string) ([]Repository, error) {
	repos := make([]Repository, 0, len(tokens))
	for _, t := range tokens {
		repo, err := ps.Parse(t)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return repos, nil
}

// IndexParser accepts "#<n>", selecting the n-th of the given repositories.
func IndexParser(repos []Repository) Parser {
	return ParserFunc(func(token string) (Repository, error) {
		rest, ok := strings.CutPrefix(token, "#")
		if !ok {
			return nil, nil
		}
		i, err := strconv.Atoi(rest)
		if err != nil {
			return nil, fmt.Errorf("repository token %q: invalid index: %w", token, err)
		}
		if i < 0 || i >= len(repos) {
			return nil, fmt.Errorf("repository token %q: index out of range, %d repositories configured", token, len(repos))
		}
		return repos[i], nil
	})
}

// FileParser accepts "file:<path>". Relative paths are resolved against base.
func FileParser(base string) Parser {
	return ParserFunc(func(token string) (Repository, error) {
		dir, ok := strings.CutPrefix(token, "file:")
		if !ok {
			return nil, nil
		}
		if dir == "" {
			return nil, fmt.Errorf("repository token %q: empty path", token)
		}
		if !filepath.IsAbs(dir) && base != "" {
			dir = filepath.Join(base, dir)
		}
		return NewFileRepository(dir), nil
	})
}

// HTTPParser accepts "http://" and "https://" URLs. headers, if not nil,
// returns the headers to send to a host. A nil client means
// http.DefaultClient.
func HTTPParser(client *http.Client, headers func(host string) map[string]string) Parser {
	return ParserFunc(func(token string) (Repository, error) {
		if !strings.HasPrefix(token, "http://") && !strings.HasPrefix(token, "https://") {
			return nil, nil
		}
		repo, err := NewHTTPRepository(token)
		if err != nil {
			return nil, fmt.Errorf("repository token %q: %w", token, err)
		}
		if client != nil {
			repo.WithClient(client)
		}
		if headers != nil {
			repo.WithHeaders(headers(repo.base.Host))
		}
		return repo, nil
	})
}

// GitParser accepts "git+<url>[#<ref>]", cloning into cacheDir. auth, if not
// nil, returns the credentials to use for a URL.
func GitParser(cacheDir string, auth func(url string) (transport.AuthMethod, error)) Parser {
	return ParserFunc(func(token string) (Repository, error) {
		rest, ok := strings.CutPrefix(token, "git+")
		if !ok {
			return nil, nil
		}
		url, ref, _ := strings.Cut(rest, "#")
		if url == "" {
			return nil, fmt.Errorf("repository token %q: empty url", token)
		}
		repo := NewGitRepository(cacheDir, url, ref)
		if auth != nil {
			a, err := auth(url)
			if err != nil {
				return nil, fmt.Errorf("repository token %q: %w", token, err)
			}
			repo.WithAuth(a)
		}
		return repo, nil
	})
}
