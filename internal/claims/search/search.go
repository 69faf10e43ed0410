// Package search keeps a denormalized copy of claims in Elasticsearch for
// the adjuster dashboard. Indexing is best effort; the repository stays the
// source of truth.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"claimsflow/internal/claims"
	apperrors "claimsflow/internal/common/errors"
	"claimsflow/internal/common/logger"
	"claimsflow/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

const indexMapping = `{
	"mappings": {
		"properties": {
			"id":                  {"type": "keyword"},
			"policyNumber":        {"type": "keyword"},
			"customerName":        {"type": "text"},
			"accidentType":        {"type": "keyword"},
			"accidentLocation":    {"type": "text"},
			"status":              {"type": "keyword"},
			"adjusterTier":        {"type": "keyword"},
			"assignedAdjuster":    {"type": "keyword"},
			"straightThrough":     {"type": "boolean"},
			"fraudRisk":           {"type": "integer"},
			"complexity":          {"type": "integer"},
			"urgency":             {"type": "integer"},
			"unreadNotifications": {"type": "integer"},
			"createdAt":           {"type": "date"},
			"updatedAt":           {"type": "date"}
		}
	}
}`

// Document is the indexed shape of a claim.
type Document struct {
	ID                  string    `json:"id"`
	PolicyNumber        string    `json:"policyNumber"`
	CustomerName        string    `json:"customerName"`
	AccidentType        string    `json:"accidentType"`
	AccidentLocation    string    `json:"accidentLocation"`
	Status              string    `json:"status"`
	AdjusterTier        string    `json:"adjusterTier,omitempty"`
	AssignedAdjuster    string    `json:"assignedAdjuster,omitempty"`
	StraightThrough     bool      `json:"straightThrough"`
	FraudRisk           int       `json:"fraudRisk,omitempty"`
	Complexity          int       `json:"complexity,omitempty"`
	Urgency             int       `json:"urgency,omitempty"`
	UnreadNotifications int       `json:"unreadNotifications"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

func NewDocument(c *models.Claim) Document {
	doc := Document{
		ID:                  c.ID,
		PolicyNumber:        c.PolicyNumber,
		CustomerName:        c.CustomerName,
		AccidentType:        string(c.AccidentType),
		AccidentLocation:    c.AccidentLocation,
		Status:              string(c.Status),
		AssignedAdjuster:    c.AssignedAdjuster,
		UnreadNotifications: c.UnreadNotifications(),
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
	if c.Scores != nil {
		doc.FraudRisk = c.Scores.FraudRisk
		doc.Complexity = c.Scores.Complexity
		doc.Urgency = c.Scores.Urgency
	}
	if c.Routing != nil {
		doc.AdjusterTier = string(c.Routing.AdjusterTier)
		doc.StraightThrough = c.Routing.StraightThroughEligible
	}
	return doc
}

type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "claim-search", "index": index}),
	}
}

// EnsureIndex creates the claim index with its mapping when missing.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	res, err := i.client.Indices.Exists([]string{i.index}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return apperrors.NewDependencyUnavailableError("elasticsearch", err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = i.client.Indices.Create(
		i.index,
		i.client.Indices.Create.WithBody(bytes.NewReader([]byte(indexMapping))),
		i.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return apperrors.NewDependencyUnavailableError("elasticsearch", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperrors.NewDependencyUnavailableError("elasticsearch", fmt.Errorf("create index: %s", res.Status()))
	}
	return nil
}

// ClaimSaved indexes the committed claim. Failures are logged only.
func (i *Indexer) ClaimSaved(ctx context.Context, c *models.Claim) {
	if err := i.Index(ctx, c); err != nil {
		i.logger.Warn("claim indexing failed", map[string]interface{}{
			"claimId": c.ID,
			"error":   err.Error(),
		})
	}
}

func (i *Indexer) Index(ctx context.Context, c *models.Claim) error {
	body, err := json.Marshal(NewDocument(c))
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	res, err := i.client.Index(
		i.index,
		bytes.NewReader(body),
		i.client.Index.WithDocumentID(c.ID),
		i.client.Index.WithContext(ctx),
	)
	if err != nil {
		return apperrors.NewDependencyUnavailableError("elasticsearch", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperrors.NewDependencyUnavailableError("elasticsearch", fmt.Errorf("index claim: %s", res.Status()))
	}
	return nil
}

// Result is one page of search hits.
type Result struct {
	Total     int        `json:"total"`
	Documents []Document `json:"documents"`
}

// Search runs a filtered query over the index, newest claims first.
func (i *Indexer) Search(ctx context.Context, f claims.Filter) (*Result, error) {
	body, err := json.Marshal(buildQuery(f))
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	size := f.Limit
	if size <= 0 {
		size = 50
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.index),
		i.client.Search.WithBody(bytes.NewReader(body)),
		i.client.Search.WithSize(size),
	)
	if err != nil {
		return nil, apperrors.NewDependencyUnavailableError("elasticsearch", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, apperrors.NewDependencyUnavailableError("elasticsearch", err)
	}
	if res.IsError() {
		return nil, apperrors.NewDependencyUnavailableError("elasticsearch", fmt.Errorf("search: %s", res.Status()))
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, apperrors.NewDependencyUnavailableError("elasticsearch", fmt.Errorf("decode search response: %w", err))
	}

	out := &Result{Total: parsed.Hits.Total.Value, Documents: make([]Document, 0, len(parsed.Hits.Hits))}
	for _, h := range parsed.Hits.Hits {
		out.Documents = append(out.Documents, h.Source)
	}
	return out, nil
}

func buildQuery(f claims.Filter) map[string]interface{} {
	var filters []interface{}
	if f.Status != "" {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"status": string(f.Status)}})
	}
	if f.Tier != "" {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"adjusterTier": string(f.Tier)}})
	}

	query := map[string]interface{}{"match_all": map[string]interface{}{}}
	if len(filters) > 0 {
		query = map[string]interface{}{"bool": map[string]interface{}{"filter": filters}}
	}
	return map[string]interface{}{
		"query": query,
		"sort":  []interface{}{map[string]interface{}{"createdAt": map[string]interface{}{"order": "desc"}}},
	}
}
