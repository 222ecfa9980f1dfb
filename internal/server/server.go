package server

import (
	"context"
	"crypto/x509"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rezonia/nfse-cli/internal/emission"
	"github.com/rezonia/nfse-cli/internal/metrics"
	"github.com/rezonia/nfse-cli/internal/model"
	"github.com/rezonia/nfse-cli/internal/sefin"
	"github.com/rezonia/nfse-cli/internal/signature"
	"github.com/rezonia/nfse-cli/internal/signature/trust"
	"github.com/rezonia/nfse-cli/internal/signature/xml"
	"github.com/rezonia/nfse-cli/internal/storage"
)

// Config holds server configuration
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool

	// Environment and Simulate apply to every emission; a request may ask
	// for simulation but never disable it when Simulate is set.
	Environment model.Environment
	Simulate    bool
	AppVersion  string

	// Provider is used when a request carries no prestador
	Provider    *model.Provider
	Series      int
	Credentials emission.Credentials

	// Intermediates complete signer chains during verification
	Intermediates []*x509.Certificate

	Client     *sefin.Client
	TrustStore *trust.TrustStore
	Store      *storage.Store
	SchemaPath string
	Logger     *zap.Logger
}

// Server represents the HTTP API server
type Server struct {
	config   *Config
	router   *gin.Engine
	pipeline *emission.Pipeline
	verifier *xml.XMLVerifier
	registry *prometheus.Registry
	logger   *zap.Logger
	now      func() time.Time
}

// NewServer creates a new API server
func NewServer(config *Config) (*Server, error) {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	trustStore := config.TrustStore
	if trustStore == nil {
		ts, err := trust.NewTrustStore()
		if err != nil {
			return nil, err
		}
		trustStore = ts
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	opts := []emission.PipelineOption{
		emission.WithTrustStore(trustStore),
		emission.WithMetrics(m),
		emission.WithLogger(logger),
		emission.WithSchema(config.SchemaPath),
		emission.WithRendering(config.Store != nil),
	}
	if config.Client != nil {
		opts = append(opts, emission.WithClient(config.Client))
	}
	pipeline, err := emission.NewPipeline(opts...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:   config,
		router:   router,
		pipeline: pipeline,
		verifier: xml.NewXMLVerifier(trustStore, xml.WithIntermediates(config.Intermediates...)),
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/dps/validate", s.handleValidate)
		v1.POST("/dps/emit", s.handleEmit)
		v1.POST("/dps/verify", s.handleVerify)

		v1.GET("/nfse/:chave", s.handleQuery)
		v1.GET("/danfse/:chave", s.handleRendering)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.logger.Info("listening", zap.String("addr", s.config.Address), zap.Stringer("ambiente", s.config.Environment))
	return srv.ListenAndServe()
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"time":     time.Now().UTC().Format(time.RFC3339),
		"ambiente": s.config.Environment.String(),
		"simulado": s.config.Simulate,
	})
}

func (s *Server) handleValidate(c *gin.Context) {
	req, ok := s.bindEmission(c)
	if !ok {
		return
	}

	doc, err := s.pipeline.Preview(req)
	if err != nil {
		var verrs model.ValidationErrors
		var verr *model.ValidationError
		switch {
		case errors.As(err, &verrs):
			c.JSON(http.StatusOK, ValidationResponse{Valid: false, Errors: issues(verrs)})
		case errors.As(err, &verr):
			c.JSON(http.StatusOK, ValidationResponse{Valid: false, Errors: issues(model.ValidationErrors{verr})})
		default:
			s.writeError(c, err)
		}
		return
	}

	xmlData, err := doc.Indented()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ValidationResponse{Valid: true, DPSID: doc.ID(), XML: string(xmlData)})
}

func (s *Server) handleEmit(c *gin.Context) {
	req, ok := s.bindEmission(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	res, err := s.pipeline.Emit(ctx, req, s.config.Credentials)

	var archive *emission.Archive
	if s.config.Store != nil && (res != nil || err == nil) {
		a, serr := emission.Save(s.config.Store, req, res, err, s.now())
		if serr != nil {
			s.logger.Error("saving artifacts failed", zap.Error(serr))
		}
		archive = a
	}

	if err != nil {
		s.writeError(c, err)
		return
	}

	status := http.StatusOK
	if res.Outcome != nil && res.Outcome.Status == model.Rejected {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, EmitResponse{
		DPSID:       res.DPSID,
		Outcome:     res.Outcome,
		Certificate: res.Certificate,
		Rendering:   res.RenderingInfo,
		Archive:     archive,
		Warnings:    res.Warnings,
	})
}

func (s *Server) handleQuery(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Minute)
	defer cancel()

	out, issued, err := s.pipeline.Lookup(ctx, s.config.Environment, s.config.Credentials, c.Param("chave"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	status := http.StatusOK
	if !out.IsAccepted() {
		status = http.StatusBadGateway
		if out.StatusCode == http.StatusNotFound {
			status = http.StatusNotFound
		}
	}
	c.JSON(status, QueryResponse{Outcome: out, NFSe: string(out.Document), Issued: issued})
}

func (s *Server) handleRendering(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Minute)
	defer cancel()

	pdf, _, err := s.pipeline.Rendering(ctx, s.config.Environment, s.config.Credentials, c.Param("chave"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+c.Param("chave")+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (s *Server) handleVerify(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return
	}

	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty request body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	result, err := s.verifier.Verify(ctx, body)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:    "signature verification failed",
			Details:  err.Error(),
			Warnings: result.Warnings,
		})
		return
	}

	response := VerifyResponse{
		Valid:          result.Valid,
		SignatureFound: result.SignatureFound,
		SignatureValid: result.SignatureValid,
		CertChainValid: result.CertChainValid,
		NotRevoked:     result.NotRevoked,
		DocumentID:     result.DocumentID,
		Warnings:       result.Warnings,
		Errors:         result.Errors,
	}

	if result.Signer != nil {
		response.Signer = &SignerInfoOutput{
			Name:         result.Signer.Name,
			Document:     result.Signer.Document,
			Organization: result.Signer.Organization,
			SerialNumber: result.Signer.SerialNumber,
			Issuer:       result.Signer.Issuer,
			ValidFrom:    &result.Signer.ValidFrom,
			ValidTo:      &result.Signer.ValidTo,
		}
	}

	if result.Valid {
		c.JSON(http.StatusOK, response)
	} else {
		c.JSON(http.StatusUnprocessableEntity, response)
	}
}

// writeError maps the pipeline's error taxonomy onto HTTP statuses
func (s *Server) writeError(c *gin.Context, err error) {
	var (
		verrs model.ValidationErrors
		verr  *model.ValidationError
		perr  *model.ParseError
		cerr  *signature.CredentialError
		serr  *signature.SignatureError
		terr  *model.TransportError
	)

	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Issues: issues(verrs)})
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Issues: issues(model.ValidationErrors{verr})})
	case errors.As(err, &perr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid document", Details: perr.Error()})
	case errors.As(err, &cerr):
		s.logger.Error("credential rejected", zap.String("kind", cerr.Kind), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "signing credential unavailable", Details: cerr.Error()})
	case errors.As(err, &serr):
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "signing failed", Details: serr.Error()})
	case errors.As(err, &terr):
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "national service unavailable", Details: terr.Error()})
	default:
		s.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Details: err.Error()})
	}
}

func issues(verrs model.ValidationErrors) []ValidationIssue {
	out := make([]ValidationIssue, 0, len(verrs))
	for _, v := range verrs {
		out = append(out, ValidationIssue{Field: v.Field, Rule: v.Rule, Message: v.Message})
	}
	return out
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}
