package grpc

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	docstorepkg "github.com/stormhead-org/fairway/internal/docstore"
	"github.com/stormhead-org/fairway/internal/lib"
)

// DocumentClient is a docstore.Store backed by a remote DocumentService.
type DocumentClient struct {
	log  *zap.Logger
	conn grpc.ClientConnInterface
}

func NewDocumentClient(log *zap.Logger, conn grpc.ClientConnInterface) *DocumentClient {
	return &DocumentClient{
		log:  log,
		conn: conn,
	}
}

// Dial connects lazily; the first call establishes the connection.
func Dial(log *zap.Logger, address string, options ...grpc.DialOption) (*DocumentClient, *grpc.ClientConn, error) {
	options = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, options...)

	conn, err := grpc.NewClient(address, options...)
	if err != nil {
		return nil, nil, err
	}
	return NewDocumentClient(log, conn), conn, nil
}

func (c *DocumentClient) invoke(ctx context.Context, method string, in any, out any) error {
	err := c.conn.Invoke(ctx, method, in, out, grpc.CallContentSubtype(CodecName))
	return lib.FromStatus(err)
}

func (c *DocumentClient) Create(ctx context.Context, collection string, fields docstorepkg.Fields) (string, error) {
	var response CreateResponse
	err := c.invoke(ctx, createMethod, &CreateRequest{Collection: collection, Fields: fields}, &response)
	if err != nil {
		return "", err
	}
	return response.ID, nil
}

func (c *DocumentClient) Put(ctx context.Context, collection string, id string, fields docstorepkg.Fields) error {
	return c.invoke(ctx, putMethod, &WriteRequest{Collection: collection, ID: id, Fields: fields}, &Empty{})
}

func (c *DocumentClient) Get(ctx context.Context, collection string, id string) (docstorepkg.Record, error) {
	var response RecordResponse
	err := c.invoke(ctx, getMethod, &PathRequest{Collection: collection, ID: id}, &response)
	if err != nil {
		return docstorepkg.Record{}, err
	}
	return response.Record, nil
}

func (c *DocumentClient) Update(ctx context.Context, collection string, id string, fields docstorepkg.Fields) error {
	return c.invoke(ctx, updateMethod, &WriteRequest{Collection: collection, ID: id, Fields: fields}, &Empty{})
}

func (c *DocumentClient) Delete(ctx context.Context, collection string, id string) error {
	return c.invoke(ctx, deleteMethod, &PathRequest{Collection: collection, ID: id}, &Empty{})
}

func (c *DocumentClient) Increment(ctx context.Context, collection string, id string, field string, delta int64) error {
	request := &IncrementRequest{Collection: collection, ID: id, Field: field, Delta: delta}
	return c.invoke(ctx, incrementMethod, request, &Empty{})
}

func (c *DocumentClient) AddToSet(ctx context.Context, collection string, id string, field string, value string) (bool, error) {
	var response SetResponse
	request := &SetRequest{Collection: collection, ID: id, Field: field, Value: value}
	err := c.invoke(ctx, addToSetMethod, request, &response)
	return response.Changed, err
}

func (c *DocumentClient) RemoveFromSet(ctx context.Context, collection string, id string, field string, value string) (bool, error) {
	var response SetResponse
	request := &SetRequest{Collection: collection, ID: id, Field: field, Value: value}
	err := c.invoke(ctx, removeFromSetMethod, request, &response)
	return response.Changed, err
}

func (c *DocumentClient) Query(ctx context.Context, collection string, query docstorepkg.Query) ([]docstorepkg.Record, error) {
	var response QueryResponse
	err := c.invoke(ctx, queryMethod, &QueryRequest{Collection: collection, Query: query}, &response)
	if err != nil {
		return nil, err
	}
	return response.Records, nil
}

// Subscribe waits for the initial snapshot, so a rejected query fails here rather
// than on the subscription.
func (c *DocumentClient) Subscribe(ctx context.Context, collection string, query docstorepkg.Query) (*docstorepkg.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	stream, err := c.conn.NewStream(ctx, &DocumentService_ServiceDesc.Streams[0], subscribeMethod, grpc.CallContentSubtype(CodecName))
	if err != nil {
		cancel()
		return nil, lib.FromStatus(err)
	}
	client := &grpc.GenericClientStream[QueryRequest, Snapshot]{ClientStream: stream}

	err = client.SendMsg(&QueryRequest{Collection: collection, Query: query})
	if err == nil {
		err = client.CloseSend()
	}
	if err != nil {
		cancel()
		return nil, lib.FromStatus(err)
	}

	first, err := client.Recv()
	if err != nil {
		cancel()
		return nil, lib.FromStatus(err)
	}

	subscription := docstorepkg.NewSubscription(cancel)
	subscription.Push(first.Records)
	subscription.Bind(ctx)

	go func() {
		for {
			snapshot, err := client.Recv()
			if err != nil {
				if ctx.Err() != nil {
					subscription.Close()
					return
				}
				c.log.Warn("subscription stream ended", zap.String("collection", collection), zap.Error(err))
				subscription.CloseWithError(errors.Join(docstorepkg.ErrSubscriptionLost, lib.FromStatus(err)))
				return
			}
			subscription.Push(snapshot.Records)
		}
	}()

	return subscription, nil
}
