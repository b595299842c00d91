package google

import (
	"context"
	"sync"

	"golang.org/x/oauth2"
)

type TokenStoreStub struct {
	mu      sync.Mutex
	nonces  map[string]int
	tokens  map[int]*oauth2.Token
	Saves   int
	saveErr error
}

func NewTokenStoreStub() *TokenStoreStub {
	return &TokenStoreStub{
		nonces: map[string]int{},
		tokens: map[int]*oauth2.Token{},
	}
}

func (s *TokenStoreStub) SetSaveError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

func (s *TokenStoreStub) PutToken(userId int, token *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *token
	s.tokens[userId] = &copied
}

func (s *TokenStoreStub) StartAuthorization(_ context.Context, userId int, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n, id := range s.nonces {
		if id == userId {
			delete(s.nonces, n)
		}
	}
	s.nonces[nonce] = userId
	return nil
}

func (s *TokenStoreStub) CompleteAuthorization(_ context.Context, nonce string, token *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	userId, ok := s.nonces[nonce]
	if !ok {
		return ErrUnknownNonce
	}
	copied := *token
	if copied.RefreshToken == "" {
		if previous, ok := s.tokens[userId]; ok {
			copied.RefreshToken = previous.RefreshToken
		}
	}
	s.tokens[userId] = &copied
	return nil
}

func (s *TokenStoreStub) GetToken(_ context.Context, userId int) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[userId]
	if !ok {
		return nil, nil
	}
	copied := *token
	return &copied, nil
}

func (s *TokenStoreStub) SaveToken(_ context.Context, userId int, token *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.Saves++
	copied := *token
	s.tokens[userId] = &copied
	return nil
}

func (s *TokenStoreStub) DeleteToken(_ context.Context, userId int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userId)
	return nil
}
