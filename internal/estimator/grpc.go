package estimator

import (
	"context"
	"errors"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/GriffinCanCode/attention-guard/internal/attention"
	apperrors "github.com/GriffinCanCode/attention-guard/internal/errors"
	"github.com/GriffinCanCode/attention-guard/internal/metrics"
	"github.com/GriffinCanCode/attention-guard/internal/resilience"
	"github.com/GriffinCanCode/attention-guard/internal/trace"
)

// Confidence returns the detector's detection and tracking confidence floors.
type Confidence func() (detection, tracking float64)

// GRPCOpener dials the inference service.
type GRPCOpener struct {
	Addr       string
	Timeout    time.Duration
	Confidence Confidence
	Breaker    *resilience.Breaker
	Retry      resilience.RetryConfig
	DialOpts   []grpc.DialOption // appended after the defaults, mainly for tests
}

// Open connects and waits until the service reports SERVING.
func (o GRPCOpener) Open(ctx context.Context) (Estimator, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                DefaultKeepaliveTime,
			Timeout:             DefaultKeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithDefaultCallOptions(grpc.MaxCallSendMsgSize(MaxMessageSize)),
		grpc.WithUnaryInterceptor(trace.UnaryClientInterceptor()),
		grpc.WithStreamInterceptor(trace.StreamClientInterceptor()),
	}
	opts = append(opts, o.DialOpts...)

	conn, err := grpc.NewClient(o.Addr, opts...)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeEstimatorUnavailable, "dial estimator %s", o.Addr)
	}

	retry := o.Retry
	if retry.MaxRetries == 0 {
		retry = resilience.EstimatorConnectRetryConfig()
	}
	health := healthpb.NewHealthClient(conn)
	err = resilience.Retry(ctx, retry, func() error { return checkHealth(ctx, health) })
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	breaker := o.Breaker
	if breaker == nil {
		breaker = resilience.New(resilience.EstimatorConfig())
	}
	trace.Logger(ctx).Info("estimator connected", "addr", o.Addr)
	return &grpcEstimator{conn: conn, timeout: timeout, confidence: o.Confidence, breaker: breaker}, nil
}

// checkHealth treats a service without the health API as healthy.
func checkHealth(ctx context.Context, client healthpb.HealthClient) error {
	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if status.Code(err) == codes.Unimplemented {
		return nil
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeEstimatorUnavailable, "estimator health check")
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return apperrors.Newf(apperrors.CodeEstimatorUnavailable, "estimator status %s", resp.GetStatus())
	}
	return nil
}

type grpcEstimator struct {
	conn       *grpc.ClientConn
	timeout    time.Duration
	confidence Confidence
	breaker    *resilience.Breaker
}

func (g *grpcEstimator) Estimate(ctx context.Context, frame []byte) (*attention.Estimate, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if g.confidence != nil {
		det, track := g.confidence()
		ctx = metadata.AppendToOutgoingContext(ctx,
			MinDetectionConfidenceKey, strconv.FormatFloat(det, 'f', -1, 64),
			MinTrackingConfidenceKey, strconv.FormatFloat(track, 'f', -1, 64),
		)
	}

	start := time.Now()
	resp, err := resilience.ExecuteWithResult(g.breaker, func() (*structpb.Struct, error) {
		out := &structpb.Struct{}
		if err := g.conn.Invoke(ctx, InferMethod, wrapperspb.Bytes(frame), out); err != nil {
			return nil, err
		}
		return out, nil
	})
	metrics.EstimatorLatency.Observe(time.Since(start).Seconds())
	if errors.Is(err, resilience.ErrOpen) {
		return nil, apperrors.Wrap(err, apperrors.CodeEstimatorUnavailable, "estimator circuit open")
	}
	if err != nil {
		return nil, apperrors.FromGRPCError(err)
	}
	return decode(resp)
}

func (g *grpcEstimator) Close() error {
	return g.conn.Close()
}
