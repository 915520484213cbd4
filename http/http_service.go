package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/flokiorg/lngateway/api"
	"github.com/flokiorg/lngateway/config"
	"github.com/flokiorg/lngateway/lnclient"
	"github.com/flokiorg/lngateway/logger"
	"github.com/flokiorg/lngateway/mcp"
	"github.com/flokiorg/lngateway/service"
)

const (
	permissionFull     = "full"
	permissionReadonly = "readonly"
)

type jwtCustomClaims struct {
	Permission string `json:"permission,omitempty"` // "full" or "readonly"
	jwt.RegisteredClaims
}

type HttpService struct {
	api api.API
	mcp *mcp.MCPService
	cfg config.Config
}

func NewHttpService(svc service.Service) *HttpService {
	gatewayAPI := api.NewAPI(svc)
	return &HttpService{
		api: gatewayAPI,
		mcp: mcp.NewMCPService(gatewayAPI, svc.GetConfig().GetEnv().MCPServerName),
		cfg: svc.GetConfig(),
	}
}

func (httpSvc *HttpService) RegisterSharedRoutes(e *echo.Echo) {
	e.HideBanner = true

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "no-referrer",
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogHost:      true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			logger.HttpLogger.Info().
				Str("uri", values.URI).
				Int("status", values.Status).
				Str("remote_ip", values.RemoteIP).
				Str("user_agent", values.UserAgent).
				Str("host", values.Host).
				Str("request_id", values.RequestID).
				Msg("handled API request")
			return nil
		},
	}))

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	e.GET("/api/health", httpSvc.healthHandler)
	// called by custodial backends, authenticated by the shared secret
	e.POST("/api/webhooks/invoice", httpSvc.invoiceWebhookHandler)

	jwtConfig := echojwt.Config{
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(jwtCustomClaims)
		},
		KeyFunc: func(token *jwt.Token) (interface{}, error) {
			secret, err := httpSvc.cfg.GetJWTSecret()
			if err != nil {
				return nil, err
			}
			return []byte(secret), nil
		},
		TokenLookup: "header:Authorization:Bearer ,query:token",
	}

	// Read-only API group - accessible to both full and readonly tokens
	readOnlyApiGroup := e.Group("/api")
	readOnlyApiGroup.Use(echojwt.WithConfig(jwtConfig))

	readOnlyApiGroup.GET("/info", httpSvc.infoHandler)
	readOnlyApiGroup.GET("/node", httpSvc.nodeInfoHandler)
	readOnlyApiGroup.GET("/backends", httpSvc.listBackendsHandler)
	readOnlyApiGroup.GET("/invoices/:paymentHash", httpSvc.lookupInvoiceHandler)
	readOnlyApiGroup.GET("/payments/:paymentHash", httpSvc.paymentStatusHandler)
	readOnlyApiGroup.GET("/balance/wallet", httpSvc.walletBalanceHandler)
	readOnlyApiGroup.GET("/balance/channels", httpSvc.channelBalanceHandler)
	readOnlyApiGroup.GET("/channels", httpSvc.channelsListHandler)

	// Full access API group - requires a token with full permissions
	fullAccessApiGroup := e.Group("/api")
	fullAccessApiGroup.Use(echojwt.WithConfig(jwtConfig))
	fullAccessApiGroup.Use(httpSvc.requireFullAccess)

	fullAccessApiGroup.POST("/invoices", httpSvc.makeInvoiceHandler)
	fullAccessApiGroup.POST("/payments", httpSvc.sendPaymentHandler)
	fullAccessApiGroup.POST("/channels", httpSvc.openChannelHandler)
	fullAccessApiGroup.DELETE("/channels/:channelId", httpSvc.closeChannelHandler)
	fullAccessApiGroup.PUT("/backends/active", httpSvc.setActiveBackendHandler)

	// agents pay invoices through the tools, so they need a full token
	mcpGroup := e.Group("/mcp")
	mcpGroup.Use(echojwt.WithConfig(jwtConfig))
	mcpGroup.Use(httpSvc.requireFullAccess)
	mcpGroup.Any("", echo.WrapHandler(httpSvc.mcp.Handler()))
}

func (httpSvc *HttpService) requireFullAccess(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.Get("user").(*jwt.Token)
		claims := token.Claims.(*jwtCustomClaims)

		// Allow if no permission specified or if full access
		if claims.Permission == "" || claims.Permission == permissionFull {
			return next(c)
		}

		return c.JSON(http.StatusForbidden, api.ErrorResponse{
			Message: "This operation requires full access permissions",
		})
	}
}

// CreateJWT issues an API token signed with the gateway secret.
func (httpSvc *HttpService) CreateJWT(tokenExpiryDays *uint64, permission string) (string, error) {
	if !slices.Contains([]string{permissionFull, permissionReadonly}, permission) {
		return "", errors.New("invalid token permission")
	}

	expiryDays := uint64(30)
	if tokenExpiryDays != nil {
		expiryDays = *tokenExpiryDays
	}

	claims := &jwtCustomClaims{
		Permission: permission,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 24 * time.Duration(expiryDays))),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	secret, err := httpSvc.cfg.GetJWTSecret()
	if err != nil {
		return "", err
	}

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}
	return signed, nil
}

// errorStatus maps an error kind to the response code. A timed out payment
// is not an error for the client: the outcome is still being resolved.
func errorStatus(err error) int {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusAccepted
	}

	kind := lnclient.KindOf(err)
	switch kind {
	case lnclient.KindTimedOut:
		return http.StatusAccepted
	case lnclient.KindNotFound:
		return http.StatusNotFound
	case lnclient.KindNotSupported:
		return http.StatusNotImplemented
	case lnclient.KindInvalidTransition, lnclient.KindDuplicatePayment:
		return http.StatusConflict
	case lnclient.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case lnclient.KindDailyLimitExceeded:
		return http.StatusTooManyRequests
	case lnclient.KindBackendUnavailable:
		return http.StatusServiceUnavailable
	case lnclient.KindBackendConnectionError:
		return http.StatusBadGateway
	}

	switch kind.Category() {
	case lnclient.CategoryValidation:
		return http.StatusBadRequest
	case lnclient.CategoryPolicy:
		switch lnclient.ReasonOf(err) {
		case lnclient.KindDailyLimitExceeded:
			return http.StatusTooManyRequests
		case lnclient.KindDuplicatePayment:
			return http.StatusConflict
		}
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func errorJSON(c echo.Context, err error) error {
	return c.JSON(errorStatus(err), api.NewErrorResponse(err))
}

func (httpSvc *HttpService) healthHandler(c echo.Context) error {
	healthResponse, err := httpSvc.api.Health(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Message: fmt.Sprintf("Failed to check gateway health: %v", err),
		})
	}

	return c.JSON(http.StatusOK, healthResponse)
}

func (httpSvc *HttpService) invoiceWebhookHandler(c echo.Context) error {
	expected := httpSvc.cfg.GetEnv().WebhookSecret
	provided := c.QueryParam("secret")
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
		return c.JSON(http.StatusUnauthorized, api.ErrorResponse{
			Message: "invalid webhook secret",
		})
	}

	var webhookRequest api.InvoiceWebhookRequest
	if err := c.Bind(&webhookRequest); err != nil {
		return c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Message: fmt.Sprintf("Bad request: %s", err.Error()),
		})
	}

	invoice, err := httpSvc.api.HandleInvoiceWebhook(c.Request().Context(), &webhookRequest)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, invoice)
}

func (httpSvc *HttpService) infoHandler(c echo.Context) error {
	responseBody, err := httpSvc.api.GetInfo(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, responseBody)
}

func (httpSvc *HttpService) nodeInfoHandler(c echo.Context) error {
	nodeInfo, err := httpSvc.api.GetNodeInfo(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, nodeInfo)
}

func (httpSvc *HttpService) listBackendsHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, httpSvc.api.ListBackends())
}

func (httpSvc *HttpService) setActiveBackendHandler(c echo.Context) error {
	var setActiveBackendRequest api.SetActiveBackendRequest
	if err := c.Bind(&setActiveBackendRequest); err != nil {
		return c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Message: fmt.Sprintf("Bad request: %s", err.Error()),
		})
	}

	if err := httpSvc.api.SetActiveBackend(setActiveBackendRequest.Backend); err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, httpSvc.api.ListBackends())
}

func (httpSvc *HttpService) makeInvoiceHandler(c echo.Context) error {
	var makeInvoiceRequest api.CreateInvoiceRequest
	if err := c.Bind(&makeInvoiceRequest); err != nil {
		return c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Message: fmt.Sprintf("Bad request: %s", err.Error()),
		})
	}

	invoice, err := httpSvc.api.CreateInvoice(c.Request().Context(), &makeInvoiceRequest)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusCreated, invoice)
}

func (httpSvc *HttpService) lookupInvoiceHandler(c echo.Context) error {
	invoice, err := httpSvc.api.LookupInvoice(c.Request().Context(), c.Param("paymentHash"))
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, invoice)
}

func (httpSvc *HttpService) sendPaymentHandler(c echo.Context) error {
	var payInvoiceRequest api.PayInvoiceRequest
	if err := c.Bind(&payInvoiceRequest); err != nil {
		return c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Message: fmt.Sprintf("Bad request: %s", err.Error()),
		})
	}

	payment, err := httpSvc.api.PayInvoice(c.Request().Context(), &payInvoiceRequest)
	if err != nil {
		status := errorStatus(err)
		// the payment exists and may still complete, report where it stands
		if status == http.StatusAccepted && payment != nil {
			return c.JSON(status, payment)
		}
		return c.JSON(status, api.NewErrorResponse(err))
	}

	return c.JSON(http.StatusOK, payment)
}

func (httpSvc *HttpService) paymentStatusHandler(c echo.Context) error {
	if value := c.QueryParam("wait"); value != "" {
		wait, err := strconv.ParseBool(value)
		if err != nil {
			return c.JSON(http.StatusBadRequest, api.ErrorResponse{
				Message: fmt.Sprintf("Bad request: invalid wait value %q", value),
			})
		}
		if wait {
			return httpSvc.awaitPaymentHandler(c)
		}
	}

	status, err := httpSvc.api.GetPaymentStatus(c.Request().Context(), c.Param("paymentHash"))
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, status)
}

func (httpSvc *HttpService) awaitPaymentHandler(c echo.Context) error {
	payment, err := httpSvc.api.AwaitPayment(c.Request().Context(), c.Param("paymentHash"))
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusAccepted && payment != nil {
			return c.JSON(status, payment)
		}
		return c.JSON(status, api.NewErrorResponse(err))
	}

	return c.JSON(http.StatusOK, payment)
}

func (httpSvc *HttpService) walletBalanceHandler(c echo.Context) error {
	balance, err := httpSvc.api.GetWalletBalance(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, balance)
}

func (httpSvc *HttpService) channelBalanceHandler(c echo.Context) error {
	balance, err := httpSvc.api.GetChannelBalance(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, balance)
}

func (httpSvc *HttpService) channelsListHandler(c echo.Context) error {
	channels, err := httpSvc.api.ListChannels(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, channels)
}

func (httpSvc *HttpService) openChannelHandler(c echo.Context) error {
	var openChannelRequest api.OpenChannelRequest
	if err := c.Bind(&openChannelRequest); err != nil {
		return c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Message: fmt.Sprintf("Bad request: %s", err.Error()),
		})
	}

	channel, err := httpSvc.api.OpenChannel(c.Request().Context(), &openChannelRequest)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, channel)
}

func (httpSvc *HttpService) closeChannelHandler(c echo.Context) error {
	force := false
	if value := c.QueryParam("force"); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return c.JSON(http.StatusBadRequest, api.ErrorResponse{
				Message: fmt.Sprintf("Bad request: invalid force value %q", value),
			})
		}
		force = parsed
	}

	closeChannelResponse, err := httpSvc.api.CloseChannel(c.Request().Context(), c.Param("channelId"), force)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, closeChannelResponse)
}
