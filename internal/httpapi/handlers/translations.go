package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/streamlate/streamlate/internal/common"
	"github.com/streamlate/streamlate/internal/ollama"
	"github.com/streamlate/streamlate/internal/translate"
)

type translateReq struct {
	Model          string `json:"model"`
	SourceLanguage string `json:"source_language" binding:"required"`
	TargetLanguage string `json:"target_language" binding:"required"`
	Text           string `json:"text" binding:"required"`
}

func (r translateReq) toRequest() translate.Request {
	return translate.Request{
		Model:          r.Model,
		SourceLanguage: r.SourceLanguage,
		TargetLanguage: r.TargetLanguage,
		Text:           r.Text,
	}
}

// failUpstream maps a domain error to the envelope, carrying the recovery
// hint when the taxonomy defines one.
func failUpstream(c *gin.Context, err error) {
	status := http.StatusBadGateway
	code := 50201
	hint := ""

	var de *ollama.Error
	if errors.As(err, &de) {
		hint = de.Hint()
		if de.Kind == ollama.KindModelNotFound {
			status = http.StatusNotFound
			code = 40403
		}
	}

	c.JSON(status, gin.H{
		"code":    code,
		"message": err.Error(),
		"hint":    hint,
		"data":    nil,
	})
}

func (h *Handler) ListModels(c *gin.Context) {
	names, err := h.Svc.ListModels(c.Request.Context())
	if err != nil {
		failUpstream(c, err)
		return
	}
	common.OK(c, gin.H{"models": names})
}

func (h *Handler) Translate(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req translateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	rec, err := h.Svc.Translate(c.Request.Context(), uid, req.toRequest())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Client closed the request; this is not an upstream failure.
			// 499 follows the nginx convention for client-closed requests.
			c.Status(499)
			return
		}
		failUpstream(c, err)
		return
	}

	common.OK(c, gin.H{
		"record_id":       rec.RecordID,
		"model":           rec.Model,
		"translated_text": rec.TranslatedText,
	})
}

func (h *Handler) TranslateStream(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req translateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	// SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx

	// avoid gin writing a JSON response later
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	chunks, done, recIDCh, errs := h.Svc.TranslateStream(ctx, uid, req.toRequest())

	// heartbeat ticker (keeps connections alive)
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		// can't stream
		fmt.Fprintf(c.Writer, "event: error\ndata: flusher not supported\n\n")
		return
	}

	writeJSON := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		if event != "" {
			fmt.Fprintf(c.Writer, "event: %s\n", event)
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", string(b))
		flusher.Flush()
	}

	for {
		select {
		case ch, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			writeJSON("chunk", gin.H{
				"type":  "chunk",
				"delta": ch,
			})

		case <-ticker.C:
			writeJSON("ping", gin.H{
				"type": "ping",
				"ts":   time.Now().Unix(),
			})

		case err, ok := <-errs:
			if !ok {
				// Channel closed without a terminal error; stop selecting on
				// it so the loop blocks on the remaining channels.
				errs = nil
				continue
			}
			if errors.Is(err, translate.ErrCancelled) {
				writeJSON("cancelled", gin.H{
					"type": "cancelled",
				})
				return
			}
			hint := ""
			var de *ollama.Error
			if errors.As(err, &de) {
				hint = de.Hint()
			}
			writeJSON("error", gin.H{
				"type":    "error",
				"message": err.Error(),
				"hint":    hint,
			})
			return

		case <-done:
			var rid string
			select {
			case rid = <-recIDCh:
			default:
			}
			writeJSON("done", gin.H{
				"type":      "done",
				"record_id": rid,
			})
			return

		case <-ctx.Done():
			// Client went away; the session is cancelled through the context.
			return
		}
	}
}

func (h *Handler) TranslateAsync(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req translateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if h.Rabbit == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "async translation unavailable")
		return
	}

	// read idempotency key
	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}
	var idempoKeyPtr *string
	if idempoKey != "" {
		idempoKeyPtr = &idempoKey
	}

	jobID, err := common.NewULID()
	if err != nil {
		log.Printf("[TranslateAsync] NewULID failed uid=%d err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	j := &translate.Job{
		ID:             jobID,
		UserID:         uid,
		Model:          req.Model,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		SourceText:     req.Text,
		IdempotencyKey: idempoKeyPtr,
		Status:         translate.JobQueued,
	}

	created := true
	if idempoKeyPtr == nil {
		if err := h.Svc.CreateJob(c.Request.Context(), j); err != nil {
			log.Printf("[TranslateAsync] CreateJob failed uid=%d job_id=%s err=%v", uid, jobID, err)
			common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
			return
		}
	} else {
		var job *translate.Job
		job, created, err = h.Svc.CreateJobOrGetExisting(c.Request.Context(), j)
		if err != nil {
			log.Printf("[TranslateAsync] CreateJobOrGetExisting failed uid=%d job_id=%s key=%s err=%v", uid, jobID, idempoKey, err)
			common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
			return
		}
		j = job
	}

	// Enqueue only when a new job was created
	if created {
		if err := h.Rabbit.PublishJob(c.Request.Context(), j.ID); err != nil {
			log.Printf("[TranslateAsync] PublishJob failed uid=%d job_id=%s err=%v", uid, j.ID, err)
			common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
			return
		}
	}

	common.OK(c, gin.H{"job_id": j.ID})
}

func (h *Handler) GetJob(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "job_id required")
		return
	}

	j, err := h.Svc.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	if j.UserID != uid {
		// hide existence
		common.Fail(c, http.StatusNotFound, 40402, "job not found")
		return
	}

	common.OK(c, gin.H{
		"job": gin.H{
			"id":               j.ID,
			"status":           j.Status,
			"result_record_id": j.ResultRecordID,
			"error":            j.Error,
			"created_at":       j.CreatedAt,
			"updated_at":       j.UpdatedAt,
		},
	})
}

func (h *Handler) ListTranslations(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	beforeIDStr := c.Query("before_id")
	var beforeID uint64
	if beforeIDStr != "" {
		if n, err := strconv.ParseUint(beforeIDStr, 10, 64); err == nil {
			beforeID = n
		}
	}

	recs, err := h.Svc.ListRecords(c.Request.Context(), uid, limit, beforeID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list translations")
		return
	}

	var nextBeforeID uint64
	if len(recs) > 0 {
		nextBeforeID = recs[len(recs)-1].ID
	}

	common.OK(c, gin.H{
		"translations":   recs,
		"next_before_id": nextBeforeID,
	})
}
