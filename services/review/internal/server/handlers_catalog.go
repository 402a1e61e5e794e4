package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jeno-bellido/ich-backend/services/review/internal/app"
)

type createProductRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	File        string `json:"file"`
}

type ratingRequest struct {
	ProductID string `json:"product_id"`
	AuthorID  string `json:"author_id"`
	Rating    int    `json:"rating"`
	Review    string `json:"review"`
}

type averageResponse struct {
	Average      *float64 `json:"average"`
	RatingLength int      `json:"rating_length"`
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	var req createProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON body")
		return
	}
	product, err := s.app.CreateProduct(r.Context(), claims.ID, app.NewProduct{
		Title:       req.Title,
		Description: req.Description,
		File:        req.File,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.app.ListProducts(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleProductByID(w http.ResponseWriter, r *http.Request) {
	detail, err := s.app.ProductDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleSubmitRating is not behind the session verifier; the author is taken
// from the request body.
func (s *Server) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON body")
		return
	}
	rating, err := s.app.SubmitRating(r.Context(), app.RatingInput{
		ProductID: req.ProductID,
		AuthorID:  req.AuthorID,
		Score:     req.Rating,
		Review:    req.Review,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rating)
}

func (s *Server) handleProductAverage(w http.ResponseWriter, r *http.Request) {
	summary, err := s.app.ProductAverage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, averageResponse{
		Average:      summary.AverageRating,
		RatingLength: summary.NumberOfRatings,
	})
}
