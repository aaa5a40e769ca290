package contact

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dharmasatrya/storefront/internal/models"
)

type fakeBackend struct {
	sent []models.ContactMessage
	err  error
}

func (f *fakeBackend) SubmitContact(ctx context.Context, msg models.ContactMessage) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func validRequest() Request {
	return Request{ContactMessage: models.ContactMessage{
		Name:    " Lucía Pérez ",
		Email:   "lucia@example.com",
		Message: "Quiero sumar mi agencia.",
	}}
}

func TestValidate(t *testing.T) {
	s := NewService(&fakeBackend{}, zap.NewNop())

	tests := []struct {
		name   string
		mutate func(r *Request)
		want   map[string]string
	}{
		{"valid", func(r *Request) {}, nil},
		{"missing name", func(r *Request) { r.Name = "  " }, map[string]string{"name": "name is required"}},
		{"bad email", func(r *Request) { r.Email = "lucia@" }, map[string]string{"email": "email is not a valid address"}},
		{"missing message", func(r *Request) { r.Message = "" }, map[string]string{"message": "message is required"}},
		{"honeypot", func(r *Request) { r.Website = "http://spam" }, map[string]string{"website": "must be left empty"}},
		{"several", func(r *Request) { r.Name = ""; r.Email = "" }, map[string]string{
			"name":  "name is required",
			"email": "email is required",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			state := s.Validate(&req)

			assert.Equal(t, tt.want == nil, state.Valid)
			assert.Equal(t, tt.want, state.Errors)
		})
	}
}

func TestSend(t *testing.T) {
	backend := &fakeBackend{}
	s := NewService(backend, zap.NewNop())

	state, err := s.Send(context.Background(), validRequest())

	require.NoError(t, err)
	assert.True(t, state.Valid)
	require.Len(t, backend.sent, 1)
	assert.Equal(t, "Lucía Pérez", backend.sent[0].Name)
	assert.Equal(t, DefaultSubject, backend.sent[0].Subject)
}

func TestSend_InvalidIsNotSent(t *testing.T) {
	backend := &fakeBackend{}
	s := NewService(backend, zap.NewNop())

	req := validRequest()
	req.Website = "bot"
	state, err := s.Send(context.Background(), req)

	require.NoError(t, err)
	assert.False(t, state.Valid)
	assert.Empty(t, backend.sent)
}

func TestSend_UpstreamFailure(t *testing.T) {
	s := NewService(&fakeBackend{err: errors.New("contact: unexpected status 503")}, zap.NewNop())

	_, err := s.Send(context.Background(), validRequest())

	assert.ErrorIs(t, err, ErrSendFailed)
}
