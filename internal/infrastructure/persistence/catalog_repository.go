package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/analytics/internal/domain/analytics"
	"github.com/erp/analytics/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type catalogDocument struct {
	ProductID  string    `bson:"_id"`
	Name       string    `bson:"name"`
	Attributes bson.M    `bson:"attributes"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

// MongoProductCatalogRepository implements analytics.ProductCatalogRepository
type MongoProductCatalogRepository struct {
	coll *mongo.Collection
}

// NewMongoProductCatalogRepository creates a repository over the given collection
func NewMongoProductCatalogRepository(coll *mongo.Collection) *MongoProductCatalogRepository {
	return &MongoProductCatalogRepository{coll: coll}
}

// Upsert replaces the catalog document of the entry's product
func (r *MongoProductCatalogRepository) Upsert(ctx context.Context, entry analytics.ProductCatalogEntry) error {
	attrs, err := attributesToBSON(entry.Attributes)
	if err != nil {
		return err
	}
	doc := catalogDocument{
		ProductID:  entry.ProductID.String(),
		Name:       entry.Name,
		Attributes: attrs,
		UpdatedAt:  entry.UpdatedAt.UTC(),
	}

	_, err = r.coll.ReplaceOne(ctx, bson.M{"_id": doc.ProductID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert catalog entry: %w", err)
	}
	return nil
}

// FindByID returns shared.ErrNotFound when the product has no catalog document
func (r *MongoProductCatalogRepository) FindByID(ctx context.Context, productID uuid.UUID) (*analytics.ProductCatalogEntry, error) {
	var doc catalogDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": productID.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find catalog entry: %w", err)
	}

	entry, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindByIDs returns the catalog entries found among productIDs keyed by id
func (r *MongoProductCatalogRepository) FindByIDs(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]analytics.ProductCatalogEntry, error) {
	result := make(map[uuid.UUID]analytics.ProductCatalogEntry, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	ids := lo.Map(productIDs, func(id uuid.UUID, _ int) string { return id.String() })
	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog entries: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []catalogDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode catalog entries: %w", err)
	}
	for _, d := range docs {
		entry, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		result[entry.ProductID] = entry
	}
	return result, nil
}

func (d catalogDocument) toDomain() (analytics.ProductCatalogEntry, error) {
	id, err := uuid.Parse(d.ProductID)
	if err != nil {
		return analytics.ProductCatalogEntry{}, fmt.Errorf("invalid stored product id %q: %w", d.ProductID, err)
	}
	attrs, err := attributesFromBSON(d.Attributes)
	if err != nil {
		return analytics.ProductCatalogEntry{}, fmt.Errorf("product %s: %w", d.ProductID, err)
	}
	return analytics.ProductCatalogEntry{
		ProductID:  id,
		Name:       d.Name,
		Attributes: attrs,
		UpdatedAt:  d.UpdatedAt.UTC(),
	}, nil
}

func attributesToBSON(attrs analytics.Attributes) (bson.M, error) {
	out := make(bson.M, len(attrs))
	for k, v := range attrs {
		bv, err := attributeToBSON(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		out[k] = bv
	}
	return out, nil
}

func attributeToBSON(v analytics.AttributeValue) (any, error) {
	switch v.Kind() {
	case analytics.AttributeString:
		s, _ := v.AsString()
		return s, nil
	case analytics.AttributeNumber:
		n, _ := v.AsNumber()
		return toDecimal128(n)
	case analytics.AttributeBool:
		b, _ := v.AsBool()
		return b, nil
	case analytics.AttributeMap:
		m, _ := v.AsMap()
		return attributesToBSON(m)
	default:
		return nil, nil
	}
}

func attributesFromBSON(m map[string]any) (analytics.Attributes, error) {
	out := make(analytics.Attributes, len(m))
	for k, raw := range m {
		v, err := attributeFromBSON(raw)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// attributeFromBSON accepts the value types other writers of the collection
// may have used for numbers and nested documents.
func attributeFromBSON(raw any) (analytics.AttributeValue, error) {
	switch v := raw.(type) {
	case nil:
		return analytics.NullAttr(), nil
	case string:
		return analytics.StringAttr(v), nil
	case bool:
		return analytics.BoolAttr(v), nil
	case int32:
		return analytics.NumberAttr(decimal.NewFromInt32(v)), nil
	case int64:
		return analytics.NumberAttr(decimal.NewFromInt(v)), nil
	case float64:
		return analytics.NumberAttr(decimal.NewFromFloat(v)), nil
	case primitive.Decimal128:
		d, err := fromDecimal128(v)
		if err != nil {
			return analytics.AttributeValue{}, err
		}
		return analytics.NumberAttr(d), nil
	case primitive.M:
		nested, err := attributesFromBSON(v)
		if err != nil {
			return analytics.AttributeValue{}, err
		}
		return analytics.MapAttr(nested), nil
	case primitive.D:
		nested, err := attributesFromBSON(v.Map())
		if err != nil {
			return analytics.AttributeValue{}, err
		}
		return analytics.MapAttr(nested), nil
	default:
		return analytics.AttributeValue{}, fmt.Errorf("unsupported stored attribute type %T", raw)
	}
}

var _ analytics.ProductCatalogRepository = (*MongoProductCatalogRepository)(nil)
