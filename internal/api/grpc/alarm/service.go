package alarm

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "alarmengine.v1.AlarmService"

// Method names of the AlarmService.
const (
	MethodLoadAlarms        = "LoadAlarms"
	MethodSaveAlarms        = "SaveAlarms"
	MethodListAlarms        = "ListAlarms"
	MethodGetAlarm          = "GetAlarm"
	MethodCreateAlarm       = "CreateAlarm"
	MethodUpdateAlarm       = "UpdateAlarm"
	MethodDeleteAlarm       = "DeleteAlarm"
	MethodToggleAlarm       = "ToggleAlarm"
	MethodDismissAlarm      = "DismissAlarm"
	MethodSnoozeAlarm       = "SnoozeAlarm"
	MethodCreateBattleAlarm = "CreateBattleAlarm"
	MethodUnlinkFromBattle  = "UnlinkFromBattle"
	MethodListEvents        = "ListEvents"
	MethodEventStats        = "EventStats"
	MethodWatchSignals      = "WatchSignals"
)

// FullMethod returns the invocation path of a method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

type unaryMethod func(s *Server, ctx context.Context, message *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts a Server method to grpc.MethodDesc.
func unaryHandler(method string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			message := new(structpb.Struct)
			if err := dec(message); err != nil {
				return nil, err
			}

			server, _ := srv.(*Server)

			if interceptor == nil {
				return call(server, ctx, message)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(method),
			}

			return interceptor(ctx, message, info, func(ctx context.Context, req any) (any, error) {
				request, _ := req.(*structpb.Struct)

				return call(server, ctx, request)
			})
		},
	}
}

func watchSignalsHandler(srv any, stream grpc.ServerStream) error {
	request := new(structpb.Struct)
	if err := stream.RecvMsg(request); err != nil {
		return err
	}

	server, _ := srv.(*Server)

	return server.WatchSignals(stream.Context(), func(message *structpb.Struct) error {
		return stream.SendMsg(message)
	})
}

// ServiceDesc describes the AlarmService for grpc.Server registration.
//
//nolint:gochecknoglobals // Service descriptors are package-level in grpc-go.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler(MethodLoadAlarms, (*Server).LoadAlarms),
		unaryHandler(MethodSaveAlarms, (*Server).SaveAlarms),
		unaryHandler(MethodListAlarms, (*Server).ListAlarms),
		unaryHandler(MethodGetAlarm, (*Server).GetAlarm),
		unaryHandler(MethodCreateAlarm, (*Server).CreateAlarm),
		unaryHandler(MethodUpdateAlarm, (*Server).UpdateAlarm),
		unaryHandler(MethodDeleteAlarm, (*Server).DeleteAlarm),
		unaryHandler(MethodToggleAlarm, (*Server).ToggleAlarm),
		unaryHandler(MethodDismissAlarm, (*Server).DismissAlarm),
		unaryHandler(MethodSnoozeAlarm, (*Server).SnoozeAlarm),
		unaryHandler(MethodCreateBattleAlarm, (*Server).CreateBattleAlarm),
		unaryHandler(MethodUnlinkFromBattle, (*Server).UnlinkFromBattle),
		unaryHandler(MethodListEvents, (*Server).ListEvents),
		unaryHandler(MethodEventStats, (*Server).EventStats),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodWatchSignals,
			Handler:       watchSignalsHandler,
			ServerStreams: true,
		},
	},
}

// Register installs the server on a gRPC registrar.
func Register(registrar grpc.ServiceRegistrar, server *Server) {
	registrar.RegisterService(&ServiceDesc, server)
}
