package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// SearchResult is one ranked chunk in a search response.
type SearchResult struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Distance   float64 `json:"distance"`
}

// SearchResponse is the body of GET /v1/search.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// handleSearch handles GET /v1/search requests.
// Query parameters:
//   - query (required): the search query text
//   - top_k (optional, default pipeline.top_k): number of results to return
func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return badRequest(c, "query parameter is required")
	}

	topK := s.pipeline.TopK()
	if topKStr := c.Query("top_k"); topKStr != "" {
		parsed, err := strconv.Atoi(topKStr)
		if err != nil || parsed <= 0 {
			return badRequest(c, "top_k must be a positive integer")
		}
		topK = parsed
	}

	results, err := s.pipeline.Retrieve(c.UserContext(), query, topK)
	if err != nil {
		return s.writeError(c, err)
	}

	out := SearchResponse{
		Query:   query,
		Results: make([]SearchResult, 0, len(results)),
	}
	for _, r := range results {
		out.Results = append(out.Results, SearchResult{
			ChunkID:    r.ID,
			DocumentID: r.ParentID,
			ChunkIndex: r.Index,
			Content:    r.Content,
			Distance:   r.Distance,
		})
	}
	return c.JSON(out)
}
