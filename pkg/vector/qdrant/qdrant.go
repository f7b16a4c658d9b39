// Package qdrant provides a vector index backed by a Qdrant collection over
// gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/google/uuid"
	qc "github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/docchat/pkg/errs"
	"github.com/papercomputeco/docchat/pkg/vector"
)

const (
	// DefaultPort is Qdrant's gRPC port.
	DefaultPort = 6334

	// DefaultCollection is used when no collection is configured.
	DefaultCollection = "docchat_chunks"

	// tieSlack extra candidates are fetched so equal distances at the k
	// boundary can be ordered by insertion sequence.
	tieSlack = 16

	payloadChunkID  = "chunk_id"
	payloadParentID = "parent_id"
	payloadContent  = "content"
	payloadIndex    = "chunk_index"
	payloadSeq      = "seq"
)

// chunkNamespace derives point UUIDs from chunk IDs, since Qdrant only
// accepts UUID or integer point IDs.
var chunkNamespace = uuid.MustParse("6f1f0e3a-8f43-4c1b-9d8e-2c6a4c9b7d21")

// Config holds configuration for the Qdrant index.
type Config struct {
	// Target is "host" or "host:port" of the gRPC endpoint.
	Target string

	// Collection is the collection name. Defaults to DefaultCollection.
	Collection string

	// Dimensions is the embedding length of the collection.
	Dimensions uint

	APIKey string
	UseTLS bool
}

// Index implements vector.Index on a Qdrant collection with Euclid distance.
//
// Equal distances are ordered by a "seq" payload stamped at first insert.
// Seq strictly increases within one process, but writers in different
// processes only agree as far as their clocks do, so ties between chunks
// inserted concurrently from two hosts may rank in either order. A query
// also fetches only tieSlack extra candidates, so a tie group wider than
// that at the k boundary is ordered among the candidates Qdrant returned.
type Index struct {
	client     *qc.Client
	collection string
	dims       uint
	logger     *slog.Logger
}

// NewIndex connects to Qdrant and creates the collection if it is missing.
func NewIndex(ctx context.Context, c Config, logger *slog.Logger) (*Index, error) {
	if c.Dimensions == 0 {
		return nil, errors.New("qdrant embedding dimensions cannot be 0, must be configured")
	}

	host, port, err := splitTarget(c.Target)
	if err != nil {
		return nil, err
	}

	collection := c.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := qc.NewClient(&qc.Config{
		Host:   host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, errs.Store("connecting to qdrant", err)
	}

	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		client.Close()
		return nil, errs.Store("checking collection", err)
	}

	if !exists {
		err = client.CreateCollection(ctx, &qc.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qc.NewVectorsConfig(&qc.VectorParams{
				Size:     uint64(c.Dimensions),
				Distance: qc.Distance_Euclid,
			}),
		})
		if err != nil {
			client.Close()
			return nil, errs.Store("creating collection", err)
		}

		_, err = client.CreateFieldIndex(ctx, &qc.CreateFieldIndexCollection{
			CollectionName: collection,
			FieldName:      payloadParentID,
			FieldType:      qc.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			client.Close()
			return nil, errs.Store("indexing parent field", err)
		}
	}

	logger.Info("qdrant vector index initialized",
		"host", host,
		"port", port,
		"collection", collection,
		"dimensions", c.Dimensions,
	)

	return &Index{
		client:     client,
		collection: collection,
		dims:       c.Dimensions,
		logger:     logger,
	}, nil
}

func splitTarget(target string) (string, int, error) {
	if target == "" {
		return "localhost", DefaultPort, nil
	}

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		// No port given.
		return target, DefaultPort, nil //nolint:nilerr
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}
	return host, port, nil
}

// PointID maps a chunk ID to the UUID used as its Qdrant point ID.
func PointID(chunkID string) string {
	return uuid.NewSHA1(chunkNamespace, []byte(chunkID)).String()
}

// Insert upserts chunks and waits for the write to be applied. Replaced
// chunks keep their original sequence number.
func (i *Index) Insert(ctx context.Context, chunks ...vector.Chunk) error {
	if err := vector.ValidateChunks(i.dims, chunks); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	seqs, err := i.existingSeqs(ctx, chunks)
	if err != nil {
		return err
	}

	base := sequence.Reserve(len(chunks))
	points := make([]*qc.PointStruct, len(chunks))
	for n, c := range chunks {
		seq, ok := seqs[PointID(c.ID)]
		if !ok {
			seq = base + int64(n)
		}

		points[n] = &qc.PointStruct{
			Id:      qc.NewIDUUID(PointID(c.ID)),
			Vectors: qc.NewVectors(c.Vector...),
			Payload: qc.NewValueMap(map[string]any{
				payloadChunkID:  c.ID,
				payloadParentID: c.ParentID,
				payloadContent:  c.Content,
				payloadIndex:    int64(c.Index),
				payloadSeq:      seq,
			}),
		}
	}

	wait := true
	if _, err := i.client.Upsert(ctx, &qc.UpsertPoints{
		CollectionName: i.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return errs.Store("upserting points", err)
	}

	i.logger.Debug("added chunks to qdrant", "count", len(chunks))
	return nil
}

func (i *Index) existingSeqs(ctx context.Context, chunks []vector.Chunk) (map[string]int64, error) {
	ids := make([]*qc.PointId, len(chunks))
	for n, c := range chunks {
		ids[n] = qc.NewIDUUID(PointID(c.ID))
	}

	found, err := i.client.Get(ctx, &qc.GetPoints{
		CollectionName: i.collection,
		Ids:            ids,
		WithPayload:    qc.NewWithPayloadInclude(payloadSeq),
	})
	if err != nil {
		return nil, errs.Store("reading existing points", err)
	}

	seqs := make(map[string]int64, len(found))
	for _, p := range found {
		seqs[p.GetId().GetUuid()] = p.GetPayload()[payloadSeq].GetIntegerValue()
	}
	return seqs, nil
}

// DeleteByParent removes a parent's points with one filtered delete.
func (i *Index) DeleteByParent(ctx context.Context, parentID string) error {
	wait := true
	_, err := i.client.Delete(ctx, &qc.DeletePoints{
		CollectionName: i.collection,
		Wait:           &wait,
		Points: qc.NewPointsSelectorFilter(&qc.Filter{
			Must: []*qc.Condition{qc.NewMatch(payloadParentID, parentID)},
		}),
	})
	if err != nil {
		return errs.Store("deleting points", err)
	}

	i.logger.Debug("deleted chunks from qdrant", "parent_id", parentID)
	return nil
}

// Query returns the k closest chunks. Qdrant reports the Euclid distance
// as the score.
func (i *Index) Query(ctx context.Context, vec []float32, k int) ([]vector.Result, error) {
	if err := vector.ValidateQuery(i.dims, vec, k); err != nil {
		return nil, err
	}

	limit := uint64(k + tieSlack)
	points, err := i.client.Query(ctx, &qc.QueryPoints{
		CollectionName: i.collection,
		Query:          qc.NewQuery(vec...),
		Limit:          &limit,
		WithPayload:    qc.NewWithPayload(true),
		WithVectors:    qc.NewWithVectors(true),
	})
	if err != nil {
		return nil, errs.Store("querying points", err)
	}

	ranked := make([]vector.Ranked, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		ranked = append(ranked, vector.Ranked{
			Result: vector.Result{
				Chunk: vector.Chunk{
					ID:       payload[payloadChunkID].GetStringValue(),
					ParentID: payload[payloadParentID].GetStringValue(),
					Content:  payload[payloadContent].GetStringValue(),
					Index:    int(payload[payloadIndex].GetIntegerValue()),
					Vector:   p.GetVectors().GetVector().GetData(),
				},
				Distance: float64(p.GetScore()),
			},
			Seq: payload[payloadSeq].GetIntegerValue(),
		})
	}

	return vector.SortRanked(ranked, k), nil
}

// Close closes the gRPC connection.
func (i *Index) Close() error {
	return i.client.Close()
}

var _ vector.Index = (*Index)(nil)
