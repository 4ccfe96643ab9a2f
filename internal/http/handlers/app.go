package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"planner/internal/animation"
	"planner/internal/domain"
	"planner/internal/infra"
	"planner/internal/middleware"
	"planner/internal/planning"
)

// maxBodyBytes bounds request bodies; plan payloads carry inline illustrations.
const maxBodyBytes = 32 << 20

const invalidPayloadMsg = "Invalid request payload."

// Animations is the animation job surface used by the handlers.
type Animations interface {
	Generate(ctx context.Context, req animation.GenerateRequest) (string, error)
	Poll(ctx context.Context, operationID string) (animation.Status, error)
	Regenerate(ctx context.Context, stepID int64) (string, error)
}

// Plans is the plan storage surface used by the handlers.
type Plans interface {
	Create(ctx context.Context, req planning.CreateRequest) (*planning.PlanDetail, error)
	List(ctx context.Context) ([]domain.PlanSummary, error)
	Get(ctx context.Context, planID int64) (*planning.PlanDetail, error)
	Delete(ctx context.Context, planID int64) error
}

type App struct {
	Logger     infra.Logger
	Animations Animations
	Plans      Plans

	validate *validator.Validate
	started  time.Time
}

func NewApp(logger infra.Logger, animations Animations, plans Plans) *App {
	return &App{
		Logger:     infra.Component(logger, "http"),
		Animations: animations,
		Plans:      plans,
		validate:   newValidator(),
		started:    time.Now(),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]string{"error": message})
}

// fail maps service errors onto status codes. notFound is the message used
// for domain.ErrNotFound.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, notFound)
	case errors.Is(err, domain.ErrNoIllustration):
		a.error(w, http.StatusInternalServerError, "This step does not have a stored illustration to generate an animation.")
	default:
		a.Logger.Error().
			Err(err).
			Str("path", r.URL.Path).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Msg("request failed")
		a.error(w, http.StatusInternalServerError, err.Error())
	}
}

// decode reads a JSON body into v and runs struct validation. It returns the
// message to report when the payload is rejected.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return invalidPayloadMsg, false
	}
	if err := a.validate.Struct(v); err != nil {
		return validationMessage(err), false
	}
	return "", true
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage turns the first failing field into a readable sentence.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return invalidPayloadMsg
	}
	fe := verrs[0]
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch fe.Tag() {
	case "required":
		return field + " is required."
	case "gt":
		if fe.Param() == "0" {
			return field + " must be greater than zero."
		}
		return field + " must be greater than " + fe.Param() + "."
	case "gte":
		return field + " must be at least " + fe.Param() + "."
	case "min":
		if fe.Kind() == reflect.Slice {
			return field + " must contain at least " + fe.Param() + " item(s)."
		}
		return field + " cannot be empty."
	case "max":
		return field + " must be at most " + fe.Param() + "."
	default:
		return field + " is invalid."
	}
}
