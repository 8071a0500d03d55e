package interactsh

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeProvider is an in-memory interactsh provider.
type fakeProvider struct {
	t      *testing.T
	server *httptest.Server

	mu            sync.Mutex
	keys          map[string]*rsa.PublicKey // correlation id -> key
	secrets       map[string]string         // correlation id -> secret
	pending       map[string][]string       // correlation id -> plaintext JSON records
	extra         []string
	registrations int
	polls         int
	deregistered  []string
	tokens        []string
	failRegister  bool
	failPoll      bool
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()

	p := &fakeProvider{
		t:       t,
		keys:    make(map[string]*rsa.PublicKey),
		secrets: make(map[string]string),
		pending: make(map[string][]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", p.handleRegister)
	mux.HandleFunc("GET /poll", p.handlePoll)
	mux.HandleFunc("POST /deregister", p.handleDeregister)

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) URL() string {
	return p.server.URL
}

// push queues an encrypted interaction for the registration.
func (p *fakeProvider) push(correlationID string, interaction map[string]any) {
	p.t.Helper()

	data, err := json.Marshal(interaction)
	if err != nil {
		p.t.Fatalf("failed to marshal interaction: %v", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[correlationID] = append(p.pending[correlationID], string(data))
}

// pushExtra queues a plaintext record delivered to every poll.
func (p *fakeProvider) pushExtra(record string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.extra = append(p.extra, record)
}

func (p *fakeProvider) handleRegister(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.registrations++
	p.tokens = append(p.tokens, r.Header.Get("Authorization"))
	if p.failRegister {
		http.Error(w, "registration disabled", http.StatusServiceUnavailable)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	pemData, err := base64.StdEncoding.DecodeString(req.PublicKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	block, _ := pem.Decode(pemData)
	if block == nil {
		http.Error(w, "invalid pem", http.StatusBadRequest)
		return
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok || req.SecretKey == "" || len(req.CorrelationID) != correlationIDLength {
		http.Error(w, "invalid registration", http.StatusBadRequest)
		return
	}

	p.keys[req.CorrelationID] = pub
	p.secrets[req.CorrelationID] = req.SecretKey
	_, _ = w.Write([]byte(`{"message":"registration successful"}`))
}

func (p *fakeProvider) handlePoll(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.polls++
	if p.failPoll {
		http.Error(w, "poll disabled", http.StatusInternalServerError)
		return
	}

	id := r.URL.Query().Get("id")
	secret := r.URL.Query().Get("secret")
	pub, ok := p.keys[id]
	if !ok || p.secrets[id] != secret {
		http.Error(w, "could not get interactions", http.StatusBadRequest)
		return
	}

	aesKey := make([]byte, 32)
	if _, err := rand.Read(aesKey); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	encryptedKey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, aesKey, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := pollResponse{
		Data:   make([]string, 0, len(p.pending[id])),
		Extra:  append([]string(nil), p.extra...),
		AESKey: base64.StdEncoding.EncodeToString(encryptedKey),
	}
	for _, record := range p.pending[id] {
		encrypted, err := encryptRecord(aesKey, []byte(record))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp.Data = append(resp.Data, encrypted)
	}
	delete(p.pending, id)
	p.extra = nil

	_ = json.NewEncoder(w).Encode(resp)
}

func (p *fakeProvider) handleDeregister(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var req deregisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if p.secrets[req.CorrelationID] != req.SecretKey {
		http.Error(w, "unknown registration", http.StatusBadRequest)
		return
	}
	delete(p.keys, req.CorrelationID)
	delete(p.secrets, req.CorrelationID)
	p.deregistered = append(p.deregistered, req.CorrelationID)
	_, _ = w.Write([]byte(`{"message":"deregistration successful"}`))
}

func (p *fakeProvider) setFailRegister(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failRegister = fail
}

func (p *fakeProvider) setFailPoll(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failPoll = fail
}

func (p *fakeProvider) stats() (registrations, polls int, deregistered []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registrations, p.polls, append([]string(nil), p.deregistered...)
}

// encryptRecord encrypts plain with AES-CFB and prepends the IV.
func encryptRecord(aesKey, plain []byte) (string, error) {
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return "", err
	}
	out := make([]byte, aes.BlockSize+len(plain))
	iv := out[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(out[aes.BlockSize:], plain) //nolint:staticcheck // matches the provider
	return base64.StdEncoding.EncodeToString(out), nil
}
