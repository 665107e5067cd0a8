// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/poiesic/assetfind/core"
	"github.com/poiesic/assetfind/storage"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	payloadColors    = "colors"
	payloadMediaType = "media_type"

	colorOverfetch = 5
)

// Store is a Qdrant backed vector index.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	logger      *slog.Logger
}

var (
	_ storage.VectorIndex       = (*Store)(nil)
	_ storage.VectorWriter      = (*Store)(nil)
	_ storage.DimensionResetter = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// Dial connects to Qdrant's gRPC endpoint at addr. Without dial options the
// connection is plaintext.
func Dial(addr, collection string, dialOpts []grpc.DialOption, opts ...Option) (*Store, error) {
	if len(dialOpts) == 0 {
		dialOpts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("qdrant: dial %s: %w", addr, err)
	}
	s, err := New(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	s.conn = conn
	return s, nil
}

// New creates a Store over existing gRPC clients.
func New(points pb.PointsClient, collections pb.CollectionsClient, collection string, opts ...Option) (*Store, error) {
	if points == nil || collections == nil {
		return nil, errors.New("qdrant: points and collections clients required")
	}
	if collection == "" {
		return nil, errors.New("qdrant: collection name required")
	}
	s := &Store{
		points:      points,
		collections: collections,
		collection:  collection,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "qdrant", "collection", collection)
	return s, nil
}

// Close closes the gRPC connection if the store opened it.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// EnsureCollection creates the collection with cosine distance if it does
// not exist yet.
func (s *Store) EnsureCollection(ctx context.Context, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("%w: %d", storage.ErrInvalidDimensions, dims)
	}
	exists, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: s.collection})
	if err != nil {
		return fmt.Errorf("qdrant: check collection %s: %w", s.collection, err)
	}
	if exists.GetResult().GetExists() {
		return nil
	}

	return s.createCollection(ctx, dims)
}

// ResetDimensions recreates the collection when its vector size differs
// from dims, dropping every stored point.
func (s *Store) ResetDimensions(ctx context.Context, dims int) (bool, error) {
	if dims <= 0 {
		return false, fmt.Errorf("%w: %d", storage.ErrInvalidDimensions, dims)
	}
	exists, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: s.collection})
	if err != nil {
		return false, fmt.Errorf("qdrant: check collection %s: %w", s.collection, err)
	}
	if !exists.GetResult().GetExists() {
		return false, s.createCollection(ctx, dims)
	}

	info, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: s.collection})
	if err != nil {
		return false, fmt.Errorf("qdrant: get collection %s: %w", s.collection, err)
	}
	size := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if size == uint64(dims) {
		return false, nil
	}

	if _, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: s.collection}); err != nil {
		return false, fmt.Errorf("qdrant: delete collection %s: %w", s.collection, err)
	}
	s.logger.Info("dropped collection for new dimensionality", "from", size, "to", dims)
	return true, s.createCollection(ctx, dims)
}

func (s *Store) createCollection(ctx context.Context, dims int) error {
	_, err := s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: pb.NewVectorsConfig(&pb.VectorParams{
			Size:     uint64(dims),
			Distance: pb.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %s: %w", s.collection, err)
	}
	s.logger.Info("created collection", "dims", dims)
	return nil
}

// UpsertVectors writes one point per embedded asset, keyed by asset ID.
func (s *Store) UpsertVectors(ctx context.Context, assets ...*core.Asset) error {
	points := make([]*pb.PointStruct, 0, len(assets))
	for _, asset := range assets {
		if !asset.HasEmbedding() {
			continue
		}
		points = append(points, &pb.PointStruct{
			Id:      pb.NewIDUUID(asset.ID.String()),
			Vectors: pb.NewVectorsDense(asset.Embedding),
			Payload: payloadFor(asset),
		})
	}
	if len(points) == 0 {
		return nil
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert %d points: %w", len(points), err)
	}
	s.logger.Debug("upserted points", "points", len(points))
	return nil
}

// DeleteVectors removes the points of the given assets.
func (s *Store) DeleteVectors(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         pb.NewPointsSelector(pointIDs(ids)...),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete %d points: %w", len(ids), err)
	}
	return nil
}

// FindNearest searches the collection. Cosine scores are converted to
// distances as 1 - score. A color filter is applied to the returned payload
// as a substring match, over-fetching colorOverfetch times the limit.
func (s *Store) FindNearest(ctx context.Context, query storage.VectorQuery) ([]storage.Neighbor, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	color := strings.ToLower(strings.TrimSpace(query.Filters.Color))
	limit := uint64(query.Limit)
	threshold := 1 - query.MaxDistance
	req := &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         query.Vector,
		Limit:          limit,
		ScoreThreshold: &threshold,
		Filter:         buildFilter(query),
	}
	if color != "" {
		req.Limit = limit * colorOverfetch
		req.WithPayload = pb.NewWithPayloadInclude(payloadColors)
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}

	neighbors := make([]storage.Neighbor, 0, min(len(resp.GetResult()), query.Limit))
	for _, point := range resp.GetResult() {
		if len(neighbors) == query.Limit {
			break
		}
		id, err := uuid.Parse(point.GetId().GetUuid())
		if err != nil {
			s.logger.Warn("skipping point with non-uuid id", "id", point.GetId().String())
			continue
		}
		if color != "" && !payloadColorsOf(point.GetPayload()).HasColor(color) {
			continue
		}
		distance := 1 - point.GetScore()
		if distance < 0 {
			distance = 0
		}
		neighbors = append(neighbors, storage.Neighbor{ID: id, Distance: distance})
	}
	return neighbors, nil
}

func buildFilter(query storage.VectorQuery) *pb.Filter {
	filter := &pb.Filter{}
	if query.Filters.Type != core.MediaTypeAny {
		filter.Must = append(filter.Must, pb.NewMatchKeyword(payloadMediaType, string(query.Filters.Type)))
	}
	if len(query.ExcludeIDs) > 0 {
		filter.MustNot = append(filter.MustNot, pb.NewHasID(pointIDs(query.ExcludeIDs)...))
	}
	if len(filter.Must) == 0 && len(filter.MustNot) == 0 {
		return nil
	}
	return filter
}

func payloadFor(asset *core.Asset) map[string]*pb.Value {
	colors := make([]*pb.Value, 0, len(asset.AIData.Colors))
	for _, color := range asset.AIData.Colors {
		if color = strings.ToLower(strings.TrimSpace(color)); color != "" {
			colors = append(colors, pb.NewValueString(color))
		}
	}

	return map[string]*pb.Value{
		payloadMediaType: pb.NewValueString(string(asset.MediaType())),
		payloadColors:    pb.NewValueFromList(colors...),
	}
}

func payloadColorsOf(payload map[string]*pb.Value) core.AIData {
	var data core.AIData
	for _, v := range payload[payloadColors].GetListValue().GetValues() {
		data.Colors = append(data.Colors, v.GetStringValue())
	}
	return data
}

func pointIDs(ids []uuid.UUID) []*pb.PointId {
	out := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		out[i] = pb.NewIDUUID(id.String())
	}
	return out
}
