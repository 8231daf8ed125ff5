package qdrant

import (
	pb "github.com/qdrant/go-client/qdrant"

	"github.com/kailas-cloud/pdfrag/internal/domain"
)

const (
	keyChunkID     = "chunk_id"
	keyOwnerID     = "owner_id"
	keyDocumentID  = "document_id"
	keyTitle       = "document_title"
	keyChunkNumber = "chunk_number"
	keyChunkText   = "chunk_text"
	keySource      = "source"
)

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func buildPayload(rec *domain.VectorRecord) map[string]*pb.Value {
	md := rec.Metadata
	return map[string]*pb.Value{
		keyChunkID:     stringValue(rec.ID),
		keyOwnerID:     stringValue(md.OwnerID),
		keyDocumentID:  stringValue(md.DocumentID),
		keyTitle:       stringValue(md.DocumentTitle),
		keyChunkNumber: {Kind: &pb.Value_IntegerValue{IntegerValue: int64(md.ChunkNumber)}},
		keyChunkText:   stringValue(md.ChunkText),
		keySource:      stringValue(md.Source),
	}
}

func parsePayload(p map[string]*pb.Value) (string, domain.Metadata) {
	return p[keyChunkID].GetStringValue(), domain.Metadata{
		OwnerID:       p[keyOwnerID].GetStringValue(),
		DocumentID:    p[keyDocumentID].GetStringValue(),
		DocumentTitle: p[keyTitle].GetStringValue(),
		ChunkNumber:   int(p[keyChunkNumber].GetIntegerValue()),
		ChunkText:     p[keyChunkText].GetStringValue(),
		Source:        p[keySource].GetStringValue(),
	}
}

// buildFilter turns the exact-match filter into Must keyword conditions.
func buildFilter(f domain.Filter) *pb.Filter {
	var must []*pb.Condition
	if f.OwnerID != "" {
		must = append(must, fieldMatch(keyOwnerID, f.OwnerID))
	}
	if f.DocumentTitle != "" {
		must = append(must, fieldMatch(keyTitle, f.DocumentTitle))
	}
	return &pb.Filter{Must: must}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
