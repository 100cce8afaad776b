package grpc

import (
	"context"

	"google.golang.org/grpc"

	docstorepkg "github.com/stormhead-org/fairway/internal/docstore"
)

const ServiceName = "fairway.DocumentService"

const (
	createMethod        = "/" + ServiceName + "/Create"
	putMethod           = "/" + ServiceName + "/Put"
	getMethod           = "/" + ServiceName + "/Get"
	updateMethod        = "/" + ServiceName + "/Update"
	deleteMethod        = "/" + ServiceName + "/Delete"
	incrementMethod     = "/" + ServiceName + "/Increment"
	addToSetMethod      = "/" + ServiceName + "/AddToSet"
	removeFromSetMethod = "/" + ServiceName + "/RemoveFromSet"
	queryMethod         = "/" + ServiceName + "/Query"
	subscribeMethod     = "/" + ServiceName + "/Subscribe"
)

type Empty struct{}

type PathRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

type CreateRequest struct {
	Collection string             `json:"collection"`
	Fields     docstorepkg.Fields `json:"fields"`
}

type CreateResponse struct {
	ID string `json:"id"`
}

type WriteRequest struct {
	Collection string             `json:"collection"`
	ID         string             `json:"id"`
	Fields     docstorepkg.Fields `json:"fields"`
}

type RecordResponse struct {
	Record docstorepkg.Record `json:"record"`
}

type IncrementRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Field      string `json:"field"`
	Delta      int64  `json:"delta"`
}

type SetRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Field      string `json:"field"`
	Value      string `json:"value"`
}

type SetResponse struct {
	Changed bool `json:"changed"`
}

type QueryRequest struct {
	Collection string            `json:"collection"`
	Query      docstorepkg.Query `json:"query"`
}

type QueryResponse struct {
	Records []docstorepkg.Record `json:"records"`
}

type Snapshot struct {
	Records []docstorepkg.Record `json:"records"`
}

type DocumentServiceServer interface {
	Create(context.Context, *CreateRequest) (*CreateResponse, error)
	Put(context.Context, *WriteRequest) (*Empty, error)
	Get(context.Context, *PathRequest) (*RecordResponse, error)
	Update(context.Context, *WriteRequest) (*Empty, error)
	Delete(context.Context, *PathRequest) (*Empty, error)
	Increment(context.Context, *IncrementRequest) (*Empty, error)
	AddToSet(context.Context, *SetRequest) (*SetResponse, error)
	RemoveFromSet(context.Context, *SetRequest) (*SetResponse, error)
	Query(context.Context, *QueryRequest) (*QueryResponse, error)
	Subscribe(*QueryRequest, grpc.ServerStreamingServer[Snapshot]) error
}

func RegisterDocumentServiceServer(registrar grpc.ServiceRegistrar, server DocumentServiceServer) {
	registrar.RegisterService(&DocumentService_ServiceDesc, server)
}

var DocumentService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DocumentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Create", createMethod, DocumentServiceServer.Create),
		unaryMethod("Put", putMethod, DocumentServiceServer.Put),
		unaryMethod("Get", getMethod, DocumentServiceServer.Get),
		unaryMethod("Update", updateMethod, DocumentServiceServer.Update),
		unaryMethod("Delete", deleteMethod, DocumentServiceServer.Delete),
		unaryMethod("Increment", incrementMethod, DocumentServiceServer.Increment),
		unaryMethod("AddToSet", addToSetMethod, DocumentServiceServer.AddToSet),
		unaryMethod("RemoveFromSet", removeFromSetMethod, DocumentServiceServer.RemoveFromSet),
		unaryMethod("Query", queryMethod, DocumentServiceServer.Query),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "fairway/document.json",
}

func unaryMethod[Req any, Resp any](
	name string,
	fullMethod string,
	call func(DocumentServiceServer, context.Context, *Req) (*Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DocumentServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(DocumentServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(QueryRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(DocumentServiceServer).Subscribe(in, &grpc.GenericServerStream[QueryRequest, Snapshot]{ServerStream: stream})
}
