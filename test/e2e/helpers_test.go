//go:build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/ethbinder/internal/chains/evm"
	"github.com/pendergraft/ethbinder/internal/config"
	"github.com/pendergraft/ethbinder/internal/server"
	"github.com/pendergraft/ethbinder/pkg/client"
)

// TestContext holds shared test infrastructure
type TestContext struct {
	GitHub     *fakeGitHub
	TestServer *httptest.Server
}

type fakeIssue struct {
	Number int               `json:"number"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	User   map[string]string `json:"user"`
}

// fakeGitHub is a stateful stand-in for api.github.com
type fakeGitHub struct {
	*httptest.Server

	mu     sync.Mutex
	repos  map[string][]string
	issues map[string][]fakeIssue
}

func newFakeGitHub() *fakeGitHub {
	f := &fakeGitHub{
		repos:  make(map[string][]string),
		issues: make(map[string][]fakeIssue),
	}

	r := chi.NewRouter()
	r.Get("/users/{login}", f.handleUser)
	r.Get("/users/{login}/repos", f.handleRepos)
	r.Get("/repos/{owner}/{repo}/issues", f.handleIssues)
	f.Server = httptest.NewServer(r)
	return f
}

func (f *fakeGitHub) addUser(login string, repos ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos[login] = append(f.repos[login], repos...)
}

func (f *fakeGitHub) addIssue(owner, repo, title, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := owner + "/" + repo
	f.issues[key] = append(f.issues[key], fakeIssue{
		Number: len(f.issues[key]) + 1,
		Title:  title,
		Body:   body,
		User:   map[string]string{"login": owner},
	})
}

func (f *fakeGitHub) handleUser(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	_, ok := f.repos[chi.URLParam(r, "login")]
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Not Found"}`))
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"login": chi.URLParam(r, "login"), "id": 1})
}

func (f *fakeGitHub) handleRepos(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	f.mu.Lock()
	names := f.repos[chi.URLParam(r, "login")]
	f.mu.Unlock()

	out := []map[string]string{}
	for i := (page - 1) * perPage; i >= 0 && i < len(names) && i < page*perPage; i++ {
		out = append(out, map[string]string{"name": names[i]})
	}
	json.NewEncoder(w).Encode(out)
}

func (f *fakeGitHub) handleIssues(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Requires authentication"}`))
		return
	}

	f.mu.Lock()
	issues := f.issues[chi.URLParam(r, "owner")+"/"+chi.URLParam(r, "repo")]
	f.mu.Unlock()

	if issues == nil {
		issues = []fakeIssue{}
	}
	json.NewEncoder(w).Encode(issues)
}

// startServerE starts an ethbinder server against the given GitHub API.
func startServerE(githubURL, token string) (*httptest.Server, error) {
	cfg := config.Default()
	cfg.GitHub.APIURL = githubURL
	cfg.GitHub.Token = token
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := server.New(cfg, server.NewGitHubClient(cfg), logger)
	return httptest.NewServer(srv.Handler()), nil
}

func newClient(ts *httptest.Server) *client.Client {
	return client.New(ts.URL)
}

// proofBody returns an issue body in the format the ethbinder site generates,
// signed by a fresh key. signer may differ from handle to produce a bad proof.
func proofBody(t *testing.T, handle, signer string) (string, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	sig, err := crypto.Sign(evm.TextHash(signer), key)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	body := fmt.Sprintf("### Ethereum Signature Verification\n\n"+
		"The following **GitHub handle** has been signed and can be verified.\n\n"+
		"```json\n{\n  \"githubHandle\": %q,\n  \"ethAddress\": %q,\n  \"signature\": %q\n}\n```\n\n"+
		"**Note**: Only the **GitHub handle** (%s) has been signed.\n", handle, addr, hexutil.Encode(sig), handle)
	return body, addr
}
