// Package contact validates and forwards the storefront contact form.
package contact

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dharmasatrya/storefront/internal/models"
)

const DefaultSubject = "Alta de agencia"

var ErrSendFailed = errors.New("could not send message")

// Request is the submitted form. Website is a honeypot: people never see it, bots fill it.
type Request struct {
	models.ContactMessage
	Website string `json:"website" validate:"isdefault"`
}

type ValidationState struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

type Backend interface {
	SubmitContact(ctx context.Context, msg models.ContactMessage) error
}

type Service struct {
	backend  Backend
	validate *validator.Validate
	logger   *zap.Logger
}

func NewService(backend Backend, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Service{
		backend:  backend,
		validate: v,
		logger:   logger.Named("contact"),
	}
}

// Validate trims the request in place and reports every failing field.
func (s *Service) Validate(req *Request) ValidationState {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Message = strings.TrimSpace(req.Message)
	if req.Subject == "" {
		req.Subject = DefaultSubject
	}

	err := s.validate.Struct(req)
	if err == nil {
		return ValidationState{Valid: true}
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ValidationState{Errors: map[string]string{"form": err.Error()}}
	}

	state := ValidationState{Errors: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		if _, seen := state.Errors[fe.Field()]; !seen {
			state.Errors[fe.Field()] = message(fe)
		}
	}
	return state
}

// Send validates req and forwards it. Invalid requests are never sent and return a nil
// error; check ValidationState.Valid.
func (s *Service) Send(ctx context.Context, req Request) (ValidationState, error) {
	state := s.Validate(&req)
	if !state.Valid {
		if _, bot := state.Errors["website"]; bot {
			s.logger.Info("contact form rejected by honeypot")
		}
		return state, nil
	}

	if err := s.backend.SubmitContact(ctx, req.ContactMessage); err != nil {
		s.logger.Warn("failed to send contact message", zap.String("email", req.Email), zap.Error(err))
		return state, ErrSendFailed
	}
	return state, nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "email is not a valid address"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "isdefault":
		return "must be left empty"
	default:
		return fe.Field() + " is invalid"
	}
}
