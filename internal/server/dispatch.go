// internal/server/dispatch.go
package server

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mcp-diet-check/internal/errors"
	"mcp-diet-check/internal/log"
	"mcp-diet-check/internal/pipeline"
	"mcp-diet-check/internal/profile"
)

// Response is the answer to one operation call. Exactly one of Result and
// ErrorCode is meaningful, depending on Success.
type Response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Result    any    `json:"result,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

type handlerFunc func(ctx context.Context, args map[string]any) (Response, error)

// Dispatcher routes named operations to their handlers. A handler error or
// panic becomes a failure response; the process keeps serving.
type Dispatcher struct {
	profiles *profile.Manager
	pipeline *pipeline.Pipeline
	tracer   trace.Tracer
	logger   *slog.Logger
	handlers map[string]handlerFunc
}

func NewDispatcher(profiles *profile.Manager, p *pipeline.Pipeline, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		profiles: profiles,
		pipeline: p,
		tracer:   otel.Tracer("dispatcher"),
		logger:   logger,
	}

	d.handlers = map[string]handlerFunc{
		ToolSearchFoodProduct:   d.handleSearchFoodProduct,
		ToolSearchSafeFoodOnly:  d.handleSearchSafeFoodOnly,
		ToolGetProductNutrition: d.handleGetProductNutrition,
		ToolSetUserProfile:      d.handleSetUserProfile,
		ToolGetUserProfile:      d.handleGetUserProfile,
		ToolClearUserProfile:    d.handleClearUserProfile,
	}

	return d
}

// Call runs the named operation. It always returns a response.
func (d *Dispatcher) Call(ctx context.Context, name string, args map[string]any) (resp Response) {
	start := time.Now()
	requestID := uuid.NewString()

	ctx, span := d.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("tool", name),
		attribute.String("request_id", requestID),
	))
	defer span.End()

	logger := d.logger.With(slog.String("request_id", requestID), slog.String("tool", name))
	if sc := span.SpanContext(); sc.IsValid() {
		logger = logger.With(slog.String("trace_id", sc.TraceID().String()[:8]))
	}
	ctx = log.IntoContext(ctx, logger)

	logger.DebugContext(ctx, "handling tool call", slog.Any("args", args))

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "tool call panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			span.SetStatus(codes.Error, "panic")
			resp = failure(errors.New(errors.ErrCodeInternal, fmt.Sprintf("An unexpected error occurred: %v", r)))
		}
		observeCall(name, resp, time.Since(start))
	}()

	handler, ok := d.handlers[name]
	if !ok {
		return failure(errors.New(errors.ErrCodeInvalidRequest, fmt.Sprintf("Unknown tool: %s", name)))
	}
	if args == nil {
		args = map[string]any{}
	}

	resp, err := handler(ctx, args)
	switch {
	case err == nil:
		logger.DebugContext(ctx, "tool call completed", slog.Duration("duration", time.Since(start)))
		return resp
	case errors.IsNotFound(err):
		logger.InfoContext(ctx, "tool call found nothing", slog.Any("err", err))
		return Response{
			Success: true,
			Message: errors.MessageOf(err),
			Result:  map[string]any{"found": false},
		}
	default:
		logger.ErrorContext(ctx, "tool call failed", slog.Any("err", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, errors.MessageOf(err))
		return failure(err)
	}
}

// Tools lists the operation names Call accepts.
func (d *Dispatcher) Tools() []string {
	names := make([]string, 0, len(toolSpecs))
	for _, t := range toolSpecs {
		names = append(names, t.Name)
	}
	return names
}

func failure(err error) Response {
	code := errors.CodeOf(err)
	msg := errors.MessageOf(err)
	if errors.IsServiceError(err) {
		msg = serviceMessage(err)
	}
	return Response{
		Success:   false,
		Message:   msg,
		ErrorCode: string(code),
	}
}

func serviceMessage(err error) string {
	if errors.CodeOf(err) == errors.ErrCodeTimeout {
		return "The food database did not respond in time. Please try again."
	}
	return fmt.Sprintf("Error contacting the food database: %s", errors.MessageOf(err))
}
