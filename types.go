package odoogate

import "github.com/odoogate/odoogate/verifier"

// loginRequest is the POST /auth/login body.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the successful POST /auth/login body. Token is the opaque
// session token; SignedToken is the self-contained claims token. ExpiresIn is
// the signed token's lifetime in seconds.
type loginResponse struct {
	Success     bool             `json:"success"`
	Token       string           `json:"token"`
	SignedToken string           `json:"signedToken,omitempty"`
	User        verifier.Subject `json:"user"`
	ExpiresIn   int64            `json:"expiresIn"`
}

// logoutRequest is the optional POST /auth/logout body.
type logoutRequest struct {
	Token string `json:"token"`
}

// logoutResponse is always {success:true}; logout is idempotent.
type logoutResponse struct {
	Success bool `json:"success"`
}

// userResponse is the GET /auth/user body.
type userResponse struct {
	User verifier.Subject `json:"user"`
}

// healthResponse is the GET /health body.
type healthResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Timestamp   string `json:"timestamp"`
	Environment string `json:"environment"`
}

// DiagnosticStats holds the /odoo/test sub-query results. Each count is
// independently failable: a failed sub-query reports zero rather than
// failing the whole request.
type DiagnosticStats struct {
	UID          int64 `json:"uid"`
	PartnerCount int   `json:"partnerCount"`
	UserCount    int   `json:"userCount"`
	CompanyCount int   `json:"companyCount"`
}

// diagnosticResponse is the POST /odoo/test body.
type diagnosticResponse struct {
	Success   bool             `json:"success"`
	Stats     *DiagnosticStats `json:"stats"`
	Timestamp string           `json:"timestamp"`
}

// errorResponse is the JSON shape of every error the gateway returns.
type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   string `json:"details,omitempty"`
	Timestamp string `json:"timestamp"`
}

// notFoundResponse is the 404 body for unmatched routes.
type notFoundResponse struct {
	Error     string `json:"error"`
	Path      string `json:"path"`
	Method    string `json:"method"`
	Timestamp string `json:"timestamp"`
}
