package http

import (
	"errors"
	"net/http"

	"guardians/internal/domain"

	"github.com/gin-gonic/gin"
)

const badgeTemplateName = "badge"

// badgeHTML is served inside a third-party iframe, so it carries its own styles.
const badgeHTML = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
{{if .Refresh}}<meta http-equiv="refresh" content="5">{{end}}
<title>Content verification</title>
<style>
body{margin:0;font-family:system-ui,sans-serif}
.badge{display:flex;align-items:center;gap:8px;border-radius:6px;border:1px solid #c7d2fe;background:#eef2ff}
.sm{font-size:12px;padding:8px}.md{font-size:14px;padding:12px}.lg{font-size:16px;padding:16px}
.verified .title{color:#166534}.not_verified .title{color:#991b1b}.not_ready .title{color:#92400e}
.meta{font-size:12px;color:#6b7280}
</style>
</head>
<body>
<div class="badge {{.Size}} {{.Status}}">
<div>
<div class="title">{{.Title}}</div>
{{if .Creator}}<div class="meta">Created by {{.Creator}}{{if .Date}} on {{.Date}}{{end}}</div>{{end}}
{{if .Reason}}<div class="meta">{{.Reason}}</div>{{end}}
</div>
</div>
</body>
</html>`

type badgeView struct {
	Size    string
	Status  domain.VerificationStatus
	Title   string
	Creator string
	Date    string
	Reason  string
	Refresh bool
}

func (s *Server) handleEmbedBadge(c *gin.Context) {
	view := badgeView{Size: badgeSize(c.Query("size"))}
	res, err := s.verify(c)
	switch {
	case retryableBadge(err, res):
		// The page refreshes itself until the registry can answer.
		view.Status = domain.VerificationNotReady
		view.Title = "Verifying content..."
		view.Refresh = true
	case err != nil:
		view.Status = domain.VerificationNotVerified
		view.Title = "Not Verified"
		view.Reason = err.Error()
		if status, _ := classify(err); status == http.StatusInternalServerError {
			view.Reason = "verification failed"
		}
	case res.Verified:
		view.Status = res.Status
		view.Title = "Verified Content"
		view.Creator = truncateAddress(res.Creator)
		if res.CreatedAt != nil {
			view.Date = res.CreatedAt.Format("2006-01-02")
		}
	default:
		view.Status = res.Status
		view.Title = "Not Verified"
		view.Reason = res.Reason
	}
	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusOK, badgeTemplateName, view)
}

// retryableBadge reports whether the badge should keep loading. Only a backend
// that is not ready yet or a transient ledger failure can change on reload.
func retryableBadge(err error, res domain.VerificationResult) bool {
	if err != nil {
		return errors.Is(err, domain.ErrNotReady) || errors.Is(err, domain.ErrTransientNetwork)
	}
	return res.Status == domain.VerificationNotReady
}

func badgeSize(s string) string {
	switch s {
	case "sm", "lg":
		return s
	default:
		return "md"
	}
}

func truncateAddress(addr string) string {
	if len(addr) <= 8 {
		return addr
	}
	return addr[:4] + "..." + addr[len(addr)-4:]
}
