package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"device-intake-backend/internal/auth"
	"device-intake-backend/internal/imei"
	"device-intake-backend/internal/model"
	"device-intake-backend/internal/notification"
	"device-intake-backend/internal/report"
	"device-intake-backend/internal/store"
)

// testEnv wires a router against an isolated in-memory database.
type testEnv struct {
	router *gin.Engine
	store  store.Store
	pool   *notification.WorkerPool
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.Order{}, &model.Device{}, &model.PushSubscription{}))

	s := store.NewGormStore(db)
	reportDir := t.TempDir()
	// The pool is never started; dispatched jobs stay buffered for assertions.
	pool := notification.NewWorkerPool(4, db, nil)
	h := NewHandler(
		s,
		imei.NewService(time.Minute),
		report.NewBuilder(s, reportDir),
		pool,
		auth.NewHolder(auth.NewMemStore()),
		t.TempDir(),
		nil,
	)
	router := NewRouter(h, RouterOptions{
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
		CacheTTL:        time.Minute,
		ReportDir:       reportDir,
	})
	return &testEnv{router: router, store: s, pool: pool}
}

// doJSON performs a request with an optional JSON body and decodes the
// response into out when it is non-nil.
func (e *testEnv) doJSON(t *testing.T, method, path string, body, out any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if out != nil && w.Code < 300 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w
}

func (e *testEnv) createOrder(t *testing.T, customer, label string) model.Order {
	t.Helper()
	var order model.Order
	w := e.doJSON(t, http.MethodPost, "/api/orders", gin.H{
		"customerName": customer,
		"labelNumber":  label,
	}, &order)
	require.Equal(t, http.StatusCreated, w.Code)
	return order
}

func (e *testEnv) createDevice(t *testing.T, orderID, imeiNumber string) deviceResponse {
	t.Helper()
	var device deviceResponse
	w := e.doJSON(t, http.MethodPost, "/api/devices", gin.H{
		"orderId":      orderID,
		"imei":         imeiNumber,
		"serialNumber": "SN" + imeiNumber[:10],
	}, &device)
	require.Equal(t, http.StatusCreated, w.Code)
	return device
}
