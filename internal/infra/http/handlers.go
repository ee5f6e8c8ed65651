package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"guardians/internal/domain"
	"guardians/internal/usecase"

	"github.com/gin-gonic/gin"
)

const maxUploadBytes = 100 << 20

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type existingResponse struct {
	ContentFingerprint string                    `json:"content_fingerprint"`
	Record             *domain.AttestationRecord `json:"record"`
}

type listResponse struct {
	Owner   string                     `json:"owner"`
	Records []domain.AttestationRecord `json:"records"`
}

type attemptsResponse struct {
	Address  string                     `json:"address"`
	Attempts []domain.SubmissionAttempt `json:"attempts"`
}

type evaluateResponse struct {
	ContentFingerprint string               `json:"content_fingerprint"`
	Use                domain.UsageKind     `json:"use"`
	Decision           domain.UsageDecision `json:"decision"`
}

func (s *Server) handleCheckExisting(c *gin.Context) {
	fp := c.Param("contentCid")
	rec, err := s.lifecycle.CheckExisting(c.Request.Context(), fp)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, existingResponse{ContentFingerprint: domain.NormalizeFingerprint(fp), Record: rec})
}

func (s *Server) handleSubmit(c *gin.Context) {
	var form usecase.SubmitForm
	if err := c.ShouldBindJSON(&form); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	res := s.lifecycle.Submit(c.Request.Context(), form)
	c.JSON(submitStatus(res), res)
}

func (s *Server) handleRevoke(c *gin.Context) {
	res := s.lifecycle.Revoke(c.Request.Context(), c.Param("contentCid"))
	c.JSON(submitStatus(res), res)
}

func (s *Server) handleListByOwner(c *gin.Context) {
	if s.registry == nil {
		writeError(c, domain.ErrNotReady)
		return
	}
	owner, err := domain.ParsePublicKey(c.Param("owner"))
	if err != nil {
		writeError(c, err)
		return
	}
	recs, err := s.registry.ListByOwner(c.Request.Context(), owner)
	if err != nil {
		writeError(c, err)
		return
	}
	if recs == nil {
		recs = []domain.AttestationRecord{}
	}
	c.JSON(http.StatusOK, listResponse{Owner: owner.String(), Records: recs})
}

func (s *Server) handleListAttempts(c *gin.Context) {
	if s.attempts == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "NOT_READY", "attempt history needs a database")
		return
	}
	addr, err := domain.ParsePublicKey(c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	rows, err := s.attempts.ListByAddress(c.Request.Context(), addr.String())
	if err != nil {
		writeError(c, err)
		return
	}
	if rows == nil {
		rows = []domain.SubmissionAttempt{}
	}
	c.JSON(http.StatusOK, attemptsResponse{Address: addr.String(), Attempts: rows})
}

func (s *Server) handleVerify(c *gin.Context) {
	res, err := s.verify(c)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// verify resolves the optional owner query and runs the verification reader.
func (s *Server) verify(c *gin.Context) (domain.VerificationResult, error) {
	fp := c.Param("contentCid")
	if s.verifier == nil {
		return domain.NotReadyResult(domain.NormalizeFingerprint(fp), domain.ReasonNoClient), nil
	}
	var owner *domain.PublicKey
	if raw := strings.TrimSpace(c.Query("owner")); raw != "" {
		parsed, err := domain.ParsePublicKey(raw)
		if err != nil {
			return domain.VerificationResult{}, err
		}
		owner = &parsed
	}
	return s.verifier.Verify(c.Request.Context(), fp, owner)
}

func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	header, err := c.FormFile("file")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(c, err)
		return
	}
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_UPLOAD", "multipart field \"file\" is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_UPLOAD", "could not read upload")
		return
	}
	defer file.Close()

	contentType := c.PostForm("content_type")
	if contentType == "" {
		contentType = header.Header.Get("Content-Type")
	}
	res, err := s.uploader.Upload(c.Request.Context(), usecase.UploadRequest{
		FileName:    header.Filename,
		ContentType: contentType,
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Body:        file,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) handleCreateLicense(c *gin.Context) {
	var terms usecase.LicenseTerms
	if err := c.ShouldBindJSON(&terms); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if s.registry == nil {
		writeError(c, domain.ErrNotReady)
		return
	}
	creator, err := s.registry.Owner()
	if err != nil {
		writeError(c, err)
		return
	}
	lic, err := s.licenses.Create(c.Request.Context(), creator, terms)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lic)
}

func (s *Server) handleLatestLicense(c *gin.Context) {
	lic, err := s.licenses.Latest(c.Request.Context(), c.Param("contentCid"), c.Query("creator"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lic)
}

func (s *Server) handleEvaluateUsage(c *gin.Context) {
	use, err := domain.ParseUsageKind(c.Query("use"))
	if err != nil {
		writeError(c, err)
		return
	}
	at := s.clock()
	if raw := strings.TrimSpace(c.Query("at")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "at must be an RFC 3339 timestamp")
			return
		}
		at = parsed
	}
	fp := c.Param("contentCid")
	decision, err := s.licenses.EvaluateUsage(c.Request.Context(), fp, c.Query("creator"), use, at)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, evaluateResponse{ContentFingerprint: domain.NormalizeFingerprint(fp), Use: use, Decision: decision})
}

func (s *Server) handleNoRoute(c *gin.Context) {
	writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
}

func submitStatus(res usecase.SubmitResult) int {
	if res.Success {
		if res.Action == domain.ActionCreate {
			return http.StatusCreated
		}
		return http.StatusOK
	}
	status, _ := classify(res.Err)
	return status
}

func classify(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, domain.ErrNotReady):
		return http.StatusServiceUnavailable, "NOT_READY"
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "ALREADY_EXISTS"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrTransientNetwork):
		return http.StatusBadGateway, "TRANSIENT_NETWORK_ERROR"
	case errors.Is(err, domain.ErrNetworkMismatch):
		return http.StatusConflict, "NETWORK_MISMATCH"
	case errors.Is(err, domain.ErrUnconfirmed):
		return http.StatusGatewayTimeout, "UNCONFIRMED"
	case errors.Is(err, domain.ErrRejected):
		return http.StatusUnprocessableEntity, "REJECTED"
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func writeError(c *gin.Context, err error) {
	status, code := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeErrorCode(c, status, code, message)
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
