package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/colporter/pkg/auth"
)

const tracerName = "github.com/tair/colporter/api-gateway"

// requestHeaderCarrier reads propagation headers straight from fasthttp
type requestHeaderCarrier struct {
	header *fasthttp.RequestHeader
}

var _ propagation.TextMapCarrier = requestHeaderCarrier{}

func (c requestHeaderCarrier) Get(key string) string {
	return string(c.header.Peek(key))
}

func (c requestHeaderCarrier) Set(key, value string) {
	c.header.Set(key, value)
}

func (c requestHeaderCarrier) Keys() []string {
	keys := make([]string, 0, c.header.Len())
	c.header.VisitAll(func(key, _ []byte) {
		keys = append(keys, string(key))
	})
	return keys
}

// TracingMiddleware continues the caller's trace (or starts one) for each
// request. The span is renamed to the matched route once routing is done and
// the trace id is returned in X-Trace-Id.
func TracingMiddleware() fiber.Handler {
	tracer := otel.Tracer(tracerName)

	return func(c *fiber.Ctx) error {
		parent := otel.GetTextMapPropagator().Extract(c.UserContext(), requestHeaderCarrier{&c.Request().Header})
		ctx, span := tracer.Start(parent, "gateway "+c.Method(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Method()),
				attribute.String("url.path", c.Path()),
				attribute.String("client.address", c.IP()),
			),
		)
		defer span.End()

		c.SetUserContext(ctx)
		if sc := span.SpanContext(); sc.HasTraceID() {
			c.Set("X-Trace-Id", sc.TraceID().String())
		}

		err := c.Next()

		if route := c.Route(); route != nil && route.Path != "" {
			span.SetName(c.Method() + " " + route.Path)
		}
		status := c.Response().StatusCode()
		span.SetAttributes(
			attribute.Int("http.response.status_code", status),
			attribute.String("colporter.request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
		)
		if role, ok := c.Locals("role").(auth.Role); ok {
			span.SetAttributes(attribute.String("colporter.role", string(role)))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, "upstream or gateway failure")
		}
		return err
	}
}
