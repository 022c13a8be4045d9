/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package storage

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/doublegate/prortip/pkg/models"
)

const scanCollectorService = "prortip.storage.ScanCollector"

// collectorServiceDesc is the hand-registered gRPC service description
// for the forwarder; the wire messages are google.protobuf.Struct
// (via structpb), so no separate code-generation step is needed for
// the batch/filter/reply shapes this sink exchanges.
var collectorServiceDesc = grpc.ServiceDesc{
	ServiceName: scanCollectorService,
	HandlerType: (*CollectorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SaveResults", Handler: saveResultsHandler},
		{MethodName: "GetResults", Handler: getResultsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "prortip/storage/collector.proto",
}

// CollectorServer is implemented by the process accepting forwarded
// result batches (the "collector" role in models.ServiceRole).
type CollectorServer interface {
	SaveResults(ctx context.Context, batch *structpb.Struct) (*structpb.Struct, error)
	GetResults(ctx context.Context, filter *structpb.Struct) (*structpb.Struct, error)
}

func saveResultsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(structpb.Struct)
	if err := dec(req); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(CollectorServer).SaveResults(ctx, req)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + scanCollectorService + "/SaveResults"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CollectorServer).SaveResults(ctx, req.(*structpb.Struct))
	}

	return interceptor(ctx, req, info, handler)
}

func getResultsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(structpb.Struct)
	if err := dec(req); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(CollectorServer).GetResults(ctx, req)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + scanCollectorService + "/GetResults"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CollectorServer).GetResults(ctx, req.(*structpb.Struct))
	}

	return interceptor(ctx, req, info, handler)
}

// RegisterCollectorServer wires a CollectorServer implementation into
// a grpc.Server, the way generated _grpc.pb.go code normally would.
func RegisterCollectorServer(s grpc.ServiceRegistrar, srv CollectorServer) {
	s.RegisterService(&collectorServiceDesc, srv)
}

// GRPCSink forwards result batches to a remote collector instead of
// (or in addition to) writing them locally, the externalized storage
// interface for multi-node deployments.
type GRPCSink struct {
	conn *grpc.ClientConn
}

// NewGRPCSink dials target using the credentials the provider
// constructs for config.
func NewGRPCSink(ctx context.Context, target string, provider SecurityProvider) (*GRPCSink, error) {
	dialOpt, err := provider.GetClientCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: grpc sink credentials: %w", err)
	}

	conn, err := grpc.NewClient(target, dialOpt)
	if err != nil {
		return nil, fmt.Errorf("storage: dial collector %s: %w", target, err)
	}

	return &GRPCSink{conn: conn}, nil
}

// SaveResults marshals a batch of results into a google.protobuf.Struct
// and forwards it to the collector's SaveResults RPC.
func (s *GRPCSink) SaveResults(ctx context.Context, results []models.Result) error {
	batch, err := resultsToStruct(results)
	if err != nil {
		return fmt.Errorf("storage: marshal result batch: %w", err)
	}

	reply := new(structpb.Struct)

	return s.conn.Invoke(ctx, "/"+scanCollectorService+"/SaveResults", batch, reply)
}

// GetResults forwards a query filter to the collector and unmarshals
// the returned batch.
func (s *GRPCSink) GetResults(ctx context.Context, filter models.ResultFilter) ([]models.Result, error) {
	req, err := filterToStruct(filter)
	if err != nil {
		return nil, fmt.Errorf("storage: marshal filter: %w", err)
	}

	reply := new(structpb.Struct)
	if err := s.conn.Invoke(ctx, "/"+scanCollectorService+"/GetResults", req, reply); err != nil {
		return nil, err
	}

	return structToResults(reply)
}

// Close tears down the underlying gRPC connection.
func (s *GRPCSink) Close() error {
	return s.conn.Close()
}

var _ Sink = (*GRPCSink)(nil)

func resultsToStruct(results []models.Result) (*structpb.Struct, error) {
	items := make([]interface{}, len(results))
	for i, r := range results {
		items[i] = map[string]interface{}{
			"scan_id":    r.ScanID,
			"target_ip":  r.TargetIP,
			"port":       float64(r.Port),
			"scan_type":  string(r.Type),
			"state":      string(r.State),
			"resp_time":  r.RespTime.String(),
			"timestamp":  r.Timestamp.Format(time.RFC3339Nano),
			"banner":     r.Banner,
			"service":    r.Service,
			"version":    r.Version,
		}
	}

	return structpb.NewStruct(map[string]interface{}{"results": items})
}

func filterToStruct(filter models.ResultFilter) (*structpb.Struct, error) {
	m := map[string]interface{}{
		"host": filter.Host,
		"port": float64(filter.Port),
	}

	if !filter.StartTime.IsZero() {
		m["start_time"] = filter.StartTime.Format(time.RFC3339Nano)
	}

	if !filter.EndTime.IsZero() {
		m["end_time"] = filter.EndTime.Format(time.RFC3339Nano)
	}

	if filter.State != nil {
		m["state"] = string(*filter.State)
	}

	return structpb.NewStruct(m)
}

func structToResults(s *structpb.Struct) ([]models.Result, error) {
	rawList, ok := s.Fields["results"]
	if !ok {
		return nil, nil
	}

	list := rawList.GetListValue()
	if list == nil {
		return nil, nil
	}

	out := make([]models.Result, 0, len(list.Values))

	for _, v := range list.Values {
		fields := v.GetStructValue().GetFields()

		r := models.Result{
			ScanID:   fields["scan_id"].GetStringValue(),
			TargetIP: fields["target_ip"].GetStringValue(),
			Port:     uint16(fields["port"].GetNumberValue()),
			Type:     models.ScanType(fields["scan_type"].GetStringValue()),
			State:    models.PortState(fields["state"].GetStringValue()),
			Banner:   fields["banner"].GetStringValue(),
			Service:  fields["service"].GetStringValue(),
			Version:  fields["version"].GetStringValue(),
		}

		if ts := fields["timestamp"].GetStringValue(); ts != "" {
			if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				r.Timestamp = parsed
			}
		}

		if rt := fields["resp_time"].GetStringValue(); rt != "" {
			if parsed, err := time.ParseDuration(rt); err == nil {
				r.RespTime = parsed
			}
		}

		out = append(out, r)
	}

	return out, nil
}
