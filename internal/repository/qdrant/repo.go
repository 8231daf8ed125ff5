package qdrant

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/kailas-cloud/pdfrag/internal/domain"
)

// pointsAPI is the subset of pb.PointsClient the gateway uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Count(ctx context.Context, in *pb.CountPoints, opts ...grpc.CallOption) (*pb.CountResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// collectionsAPI is the subset of pb.CollectionsClient the gateway uses.
type collectionsAPI interface {
	List(
		ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption,
	) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Repo is the vector store gateway over a Qdrant collection.
// Point ids are UUIDv5 of the chunk id; the chunk id itself travels in the payload.
type Repo struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
}

// New dials Qdrant over gRPC.
func New(addr, collection string) (*Repo, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial qdrant %s: %w", addr, err)
	}
	return &Repo{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients wires pre-built clients, typically fakes.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *Repo {
	return &Repo{points: points, collections: collections, collection: collection}
}

// Close closes the gRPC connection.
func (r *Repo) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// Ping lists collections as a liveness probe.
func (r *Repo) Ping(ctx context.Context) error {
	if _, err := r.collections.List(ctx, &pb.ListCollectionsRequest{}); err != nil {
		return fmt.Errorf("%w: qdrant list collections: %w", domain.ErrGateway, err)
	}
	return nil
}

// EnsureIndex creates the collection with cosine distance if it does not exist.
func (r *Repo) EnsureIndex(ctx context.Context, dim int) error {
	list, err := r.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("%w: list collections: %w", domain.ErrGateway, err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == r.collection {
			return nil
		}
	}

	_, err = r.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dim), //nolint:gosec // dim validated by config
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil
		}
		return fmt.Errorf("%w: create collection %s: %w", domain.ErrGateway, r.collection, err)
	}
	return nil
}

// Upsert writes records in a single waited call; Qdrant applies the batch atomically.
func (r *Repo) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i := range records {
		rec := &records[i]
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(rec.ID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: rec.Values},
				},
			},
			Payload: buildPayload(rec),
		}
	}

	wait := true
	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return r.wrap(fmt.Sprintf("upsert %d points", len(records)), err)
	}
	return nil
}

// Delete removes all points matching the filter and returns how many matched beforehand.
func (r *Repo) Delete(ctx context.Context, f domain.Filter) (int, error) {
	if err := f.ValidateForDelete(); err != nil {
		return 0, err
	}
	filter := buildFilter(f)

	exact := true
	cnt, err := r.points.Count(ctx, &pb.CountPoints{
		CollectionName: r.collection,
		Filter:         filter,
		Exact:          &exact,
	})
	if err != nil {
		return 0, r.wrap("count points", err)
	}
	n := int(cnt.GetResult().GetCount()) //nolint:gosec // bounded by collection size
	if n == 0 {
		return 0, nil
	}

	wait := true
	_, err = r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return 0, r.wrap("delete points", err)
	}
	return n, nil
}

// Query runs a filtered similarity search with a server-side score threshold.
func (r *Repo) Query(
	ctx context.Context, vector []float32, topK int, minScore float64, f domain.Filter,
) ([]domain.Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	threshold := float32(minScore)
	req := &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		ScoreThreshold: &threshold,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if !f.IsEmpty() {
		req.Filter = buildFilter(f)
	}

	resp, err := r.points.Search(ctx, req)
	if err != nil {
		return nil, r.wrap("search", err)
	}

	matches := make([]domain.Match, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		score := float64(p.GetScore())
		if score < minScore {
			continue
		}
		id, md := parsePayload(p.GetPayload())
		matches = append(matches, domain.Match{ID: id, Score: score, Metadata: md})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// wrap maps gRPC status codes onto domain errors.
func (r *Repo) wrap(op string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("collection %s: %s: %w", r.collection, op, domain.ErrNotFound)
	}
	return fmt.Errorf("%w: qdrant %s: %w", domain.ErrGateway, op, err)
}

// PointID derives the stable Qdrant point UUID for a chunk id.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}
