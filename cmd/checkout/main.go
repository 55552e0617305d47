package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/shakthiframing/storefront/internal/auth"
	"github.com/shakthiframing/storefront/internal/cart"
	"github.com/shakthiframing/storefront/internal/catalog"
	"github.com/shakthiframing/storefront/internal/checkout"
	"github.com/shakthiframing/storefront/internal/payment"
	"github.com/shakthiframing/storefront/internal/telemetry"
)

const cartTTL = 30 * 24 * time.Hour

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "checkout", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("checkout", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		logger.Error("REDIS_ADDR environment variable is required")
		os.Exit(1)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}

	catalogServiceURL := os.Getenv("CATALOG_SERVICE_URL")
	if catalogServiceURL == "" {
		logger.Error("CATALOG_SERVICE_URL environment variable is required")
		os.Exit(1)
	}

	ordersServiceURL := os.Getenv("ORDERS_SERVICE_URL")
	if ordersServiceURL == "" {
		logger.Error("ORDERS_SERVICE_URL environment variable is required")
		os.Exit(1)
	}

	paymentGatewayURL := os.Getenv("PAYMENT_GATEWAY_URL")
	if paymentGatewayURL == "" {
		logger.Error("PAYMENT_GATEWAY_URL environment variable is required")
		os.Exit(1)
	}
	paymentSecretKey := os.Getenv("PAYMENT_SECRET_KEY")
	if paymentSecretKey == "" {
		logger.Error("PAYMENT_SECRET_KEY environment variable is required")
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() { _ = redisClient.Close() }()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	carts := cart.NewRedisRepository(redisClient, cartTTL)
	catalogClient := catalog.NewClient(catalogServiceURL, httpClient)
	paymentClient := payment.NewClient(paymentGatewayURL, paymentSecretKey, httpClient)
	ordersClient := checkout.NewOrdersClient(ordersServiceURL, httpClient)

	handler := checkout.NewHandler(carts, catalogClient, paymentClient, ordersClient, logger)
	guard := auth.NewMiddleware([]byte(jwtSecret), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /cart", telemetry.WithHTTPRoute(guard.Protect(handler.HandleGetCart)))
	mux.HandleFunc("POST /cart/items", telemetry.WithHTTPRoute(guard.Protect(handler.HandleAddItem)))
	mux.HandleFunc("PUT /cart/items/{productId}", telemetry.WithHTTPRoute(guard.Protect(handler.HandleUpdateItem)))
	mux.HandleFunc("DELETE /cart/items/{productId}", telemetry.WithHTTPRoute(guard.Protect(handler.HandleRemoveItem)))
	mux.HandleFunc("PUT /cart/shipping-address", telemetry.WithHTTPRoute(guard.Protect(handler.HandleSaveShippingAddress)))
	mux.HandleFunc("DELETE /cart", telemetry.WithHTTPRoute(guard.Protect(handler.HandleClearCart)))
	mux.HandleFunc("POST /checkout/complete", telemetry.WithHTTPRoute(guard.Protect(handler.HandleComplete)))
	mux.Handle("GET /metrics", metricsHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8083"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "checkout",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting checkout service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
