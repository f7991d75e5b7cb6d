package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	echoapi "github.com/trezcool/tutorconnect/apps/api/echo"
	"github.com/trezcool/tutorconnect/core"
	"github.com/trezcool/tutorconnect/core/application"
	"github.com/trezcool/tutorconnect/core/availability"
	"github.com/trezcool/tutorconnect/core/report"
	"github.com/trezcool/tutorconnect/core/review"
	"github.com/trezcool/tutorconnect/core/session"
	"github.com/trezcool/tutorconnect/core/user"
	emailsvc "github.com/trezcool/tutorconnect/services/email"
	logsvc "github.com/trezcool/tutorconnect/services/logger"
	inmemdb "github.com/trezcool/tutorconnect/storage/database/inmem"
)

var (
	ctxBg           = context.Background()
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

type testApp struct {
	*echoapi.Server
	conf      *core.Config
	usrRepo   user.Repository
	availRepo availability.Repository
	sessRepo  session.Repository
	appRepo   application.Repository
	reviewSvc *review.Service
}

// setup wires a server on a fresh in-memory database.
func setup(t *testing.T) testApp {
	t.Helper()

	conf := core.NewTestConfig()
	conf.Uploads.Dir = t.TempDir()
	logger := logsvc.NewRollbarLogger(zap.NewNop(), conf)

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	availability.InitValidators(validate, translator)
	application.InitValidators(validate, translator)

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	availRepo := inmemdb.NewAvailabilityRepository(db)
	sessRepo := inmemdb.NewSessionRepository(db)
	appRepo := inmemdb.NewApplicationRepository(db)
	subjects := inmemdb.NewSubjectRepository(db)

	emailsvc.ClearSentMessages()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	usrSvc := user.NewService(usrRepo)
	availSvc := availability.NewService(availRepo, db, conf.Location())
	sessSvc := session.NewService(session.Deps{
		Repo:         sessRepo,
		Availability: availSvc,
		Subjects:     subjects,
		MailSvc:      mailSvc,
		Logger:       logger,
		Conf:         conf,
	})
	reviewSvc := review.NewService(inmemdb.NewReviewRepository(db), sessSvc)

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:            conf,
		Logger:          logger,
		Validate:        validate,
		Translator:      translator,
		UserSvc:         usrSvc,
		AvailabilitySvc: availSvc,
		SessionSvc:      sessSvc,
		ReviewSvc:       reviewSvc,
		ApplicationSvc:  application.NewService(appRepo, usrSvc, db, mailSvc),
		ReportSvc:       report.NewService(inmemdb.NewReportRepository(db), usrSvc, sessSvc),
		Subjects:        subjects,
		DisableReqLogs:  true,
	})

	return testApp{
		Server:    server,
		conf:      conf,
		usrRepo:   usrRepo,
		availRepo: availRepo,
		sessRepo:  sessRepo,
		appRepo:   appRepo,
		reviewSvc: reviewSvc,
	}
}

func (app testApp) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func (app testApp) getToken(t *testing.T, usr user.User) string {
	token, err := echoapi.GenerateToken(echoapi.NewClaims(usr, app.conf), app.conf.SecretKey)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

type httpErr struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type message struct {
	Message string `json:"message"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

type formFile struct {
	field, name string
	content     []byte
}

func newMultipartRequest(t *testing.T, method, path, token string, fields map[string]string, files ...formFile) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("WriteField() failed: %v", err)
		}
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("CreateFormFile() failed: %v", err)
		}
		if _, err = fw.Write(f.content); err != nil {
			t.Fatalf("Write() failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("multipart.Close() failed: %v", err)
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
