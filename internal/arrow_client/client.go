package arrow_client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/23skdu/longbow-qfix/internal/arrowexport"
	"github.com/23skdu/longbow-qfix/internal/logger"
	"github.com/23skdu/longbow-qfix/internal/quantize"
)

const DefaultTimeout = 30 * time.Second

// Publisher ships a quantized tensor set to a remote store under a descriptor path.
type Publisher interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, path []string, set *quantize.QuantizedTensorSet) error
	Close() error
}

// FlightClient publishes quantized tensor sets to an Arrow Flight endpoint with DoPut.
type FlightClient struct {
	client  flight.Client
	addr    string
	timeout time.Duration
}

// NewFlightClient creates an unconnected client for addr (host:port).
func NewFlightClient(addr string, timeout time.Duration) (*FlightClient, error) {
	if addr == "" {
		return nil, fmt.Errorf("flight address is empty")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &FlightClient{addr: addr, timeout: timeout}, nil
}

// Connect establishes the gRPC connection to the Flight server.
func (fc *FlightClient) Connect(ctx context.Context) error {
	client, err := flight.NewClientWithMiddleware(fc.addr, nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to create Flight client: %w", err)
	}
	fc.client = client
	return nil
}

// Close disconnects from the Flight server.
func (fc *FlightClient) Close() error {
	if fc.client != nil {
		err := fc.client.Close()
		fc.client = nil
		return err
	}
	return nil
}

// Publish sends set as a single record under the given descriptor path and waits for
// the server to acknowledge the stream.
func (fc *FlightClient) Publish(ctx context.Context, path []string, set *quantize.QuantizedTensorSet) error {
	if fc.client == nil {
		return fmt.Errorf("client not connected, call Connect() first")
	}
	if len(set.Tensors) == 0 {
		return fmt.Errorf("no tensors to publish")
	}

	ctx, cancel := context.WithTimeout(ctx, fc.timeout)
	defer cancel()

	mem := memory.NewGoAllocator()
	rec := arrowexport.NewRecord(mem, set)
	defer rec.Release()

	stream, err := fc.client.DoPut(ctx)
	if err != nil {
		return fmt.Errorf("failed to open DoPut stream: %w", err)
	}

	w := flight.NewRecordWriter(stream, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	w.SetFlightDescriptor(&flight.FlightDescriptor{Type: flight.DescriptorPATH, Path: path})

	if err := w.Write(rec); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to close send: %w", err)
	}

	acks := 0
	for {
		_, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("DoPut failed: %w", err)
		}
		acks++
	}

	logger.Log.Info("published quantized tensors",
		"addr", fc.addr,
		"path", path,
		"tensors", rec.NumRows(),
		"acks", acks,
	)
	return nil
}
