// Package grpcapi serves token validation to other services over gRPC.
//
// The service is described by hand with well-known protobuf types so no
// generated code is needed: devauth.v1.SessionService/ValidateToken takes a
// google.protobuf.StringValue token and returns the session as a
// google.protobuf.Struct.
package grpcapi
