package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wpatrik14/newsaggregator/internal/globaltime"
	"github.com/wpatrik14/newsaggregator/internal/langdetect"
	"github.com/wpatrik14/newsaggregator/internal/model"
	"github.com/wpatrik14/newsaggregator/internal/pipeline"
	submitschema "github.com/wpatrik14/newsaggregator/schema"
)

const maxSubmissionBytes = 1 << 20

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "newsaggregator",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleListArticles(c echo.Context) error {
	page, err := parsePositiveInt(c.QueryParam("page"), 1, 1, 1_000_000)
	if err != nil {
		return failValidation(c, map[string]string{"page": err.Error()})
	}
	pageSize, err := parsePositiveInt(c.QueryParam("page_size"), pipeline.DefaultFeedPageSize, 1, pipeline.MaxFeedPageSize)
	if err != nil {
		return failValidation(c, map[string]string{"page_size": err.Error()})
	}

	req := pipeline.FeedRequest{
		Country:           strings.TrimSpace(strings.ToLower(c.QueryParam("country"))),
		Category:          strings.TrimSpace(strings.ToLower(c.QueryParam("category"))),
		Search:            strings.TrimSpace(c.QueryParam("q")),
		Page:              page,
		PageSize:          pageSize,
		Refresh:           parseBool(c.QueryParam("refresh")),
		IncludeUnanalyzed: parseBool(c.QueryParam("include_unanalyzed")),
	}
	if req.Category != "" && !model.IsCategory(req.Category) {
		return failValidation(c, map[string]string{"category": "unknown category"})
	}

	feedPage := s.feed.List(c.Request().Context(), req)

	return success(c, map[string]any{
		"articles":       feedPage.Articles,
		"errors":         feedPage.Errors,
		"total_articles": feedPage.TotalArticles,
		"has_more":       feedPage.HasMore,
		"pagination": map[string]any{
			"page":      page,
			"page_size": pageSize,
		},
	})
}

func (s *Server) handleGetArticle(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return failValidation(c, map[string]string{"id": "is required"})
	}

	article := s.store.GetByID(c.Request().Context(), id)
	if article == nil {
		return failNotFound(c, "Article not found")
	}
	return success(c, article)
}

func (s *Server) handleSubmitArticle(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxSubmissionBytes))
	if err != nil {
		return failValidation(c, map[string]string{"body": "could not read request body"})
	}

	submission, err := submitschema.ValidateSubmission(body)
	if err != nil {
		return failValidation(c, map[string]string{"payload": err.Error()})
	}

	article := s.articleFromSubmission(c, submission)

	result, err := s.submitter.SubmitSync(c.Request().Context(), &article)
	switch {
	case errors.Is(err, pipeline.ErrAlreadyInFlight):
		return failConflict(c, "Article is already being processed")
	case err != nil && result.Article.ID != "":
		// The pending record is durable; only the analysis step failed.
		s.logger.Error().Err(err).Str("article_id", article.ID).Msg("article analysis failed")
		return internalError(c, "Article stored but analysis failed")
	case err != nil:
		s.logger.Error().Err(err).Str("article_id", article.ID).Msg("submit article failed")
		return internalError(c, "Failed to store article")
	}

	if result.Duplicate {
		return success(c, map[string]any{
			"article":   result.Article,
			"duplicate": true,
		})
	}
	return successWithStatus(c, http.StatusCreated, map[string]any{
		"article": result.Article,
		"pending": result.Pending,
	})
}

// articleFromSubmission maps a validated payload onto the article shape,
// filling the gaps: generated id, page-extracted content, detected language.
func (s *Server) articleFromSubmission(c echo.Context, submission *submitschema.Submission) model.Article {
	article := model.Article{
		ID:    uuid.NewString(),
		Title: strings.TrimSpace(submission.Title),
	}
	if submission.ID != nil && strings.TrimSpace(*submission.ID) != "" {
		article.ID = strings.TrimSpace(*submission.ID)
	}
	if submission.Content != nil {
		article.Content = strings.TrimSpace(*submission.Content)
	}
	if submission.Summary != nil {
		article.Summary = strings.TrimSpace(*submission.Summary)
	}
	if submission.URL != nil {
		article.URL = strings.TrimSpace(*submission.URL)
	}
	if submission.ImageURL != nil {
		article.ImageURL = strings.TrimSpace(*submission.ImageURL)
	}
	if submission.Source != nil {
		article.Source = strings.TrimSpace(*submission.Source)
	}
	if submission.Language != nil {
		article.Language = strings.TrimSpace(strings.ToLower(*submission.Language))
	}
	if submission.PublishedAt != nil {
		if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(*submission.PublishedAt)); err == nil {
			utc := ts.UTC()
			article.PublishedAt = &utc
		}
	}

	if article.Content == "" && article.URL != "" && s.fetchText != nil {
		text, err := s.fetchText(c.Request().Context(), article.URL, article.Title)
		if err != nil {
			s.logger.Warn().Err(err).Str("url", article.URL).Msg("content backfill failed")
		} else {
			article.Content = text
		}
	}
	if article.Language == "" {
		article.Language = langdetect.Detect(article.Title, article.Content)
	}

	return article
}

func (s *Server) handleDeleteArticle(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return failValidation(c, map[string]string{"id": "is required"})
	}

	s.store.DeleteByID(c.Request().Context(), id)
	return success(c, map[string]any{"deleted": id})
}

func (s *Server) handleDeleteAllArticles(c echo.Context) error {
	deleted := s.store.DeleteAll(c.Request().Context())
	return success(c, map[string]any{"deleted_count": deleted})
}

func (s *Server) handleCleanup(c echo.Context) error {
	deleted := s.store.Cleanup(c.Request().Context(), s.opts.ArticleTTL)
	return success(c, map[string]any{
		"deleted_count": deleted,
		"max_age_hours": int(s.opts.ArticleTTL / time.Hour),
	})
}

func parseBool(raw string) bool {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
