package echoapi_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tutorconnect/core/user"
	"github.com/trezcool/tutorconnect/testutil"
)

var pngContent = append([]byte("\x89PNG\x0D\x0A\x1A\x0A"), make([]byte, 64)...)

type tutorResp struct {
	ID             int     `json:"id"`
	FullName       string  `json:"full_name"`
	ProfilePicture *string `json:"profile_picture"`
}

func tutorNames(t *testing.T, body []byte) []string {
	var tutors []tutorResp
	if err := json.Unmarshal(body, &tutors); err != nil {
		t.Fatalf("decoding tutors: %v", err)
	}
	names := make([]string, 0, len(tutors))
	for _, tutor := range tutors {
		names = append(names, tutor.FullName)
	}
	return names
}

func Test_tutorApi_list(t *testing.T) {
	app := setup(t)
	testutil.CreateTutor(t, app.usrRepo, "Chausiku", "chausiku@test.cd", "Physics", "Goma, North Kivu", 30, 5)
	testutil.CreateTutor(t, app.usrRepo, "Baraka", "baraka@test.cd", "Mathematics", "Bukavu", 20, 2)
	testutil.CreateTutor(t, app.usrRepo, "Dalia", "dalia@test.cd", "mathematics", "Kinshasa", 25, 8)
	testutil.SaveUser(t, app.usrRepo, user.User{FullName: "Pending", Email: "pending@test.cd", Role: user.RoleTutor, Subject: "Mathematics"})
	testutil.CreateUser(t, app.usrRepo, "Amani", "amani@test.cd", user.RoleStudent)

	path := func(params map[string]string) string {
		v := make(url.Values)
		for k, val := range params {
			v.Set(k, val)
		}
		return "/api/tutors?" + v.Encode()
	}

	tests := []struct {
		name      string
		path      string
		wantNames []string
	}{
		{name: "approved tutors", path: "/api/tutors", wantNames: []string{"Chausiku", "Baraka", "Dalia"}},
		{name: "subject", path: path(map[string]string{"subject": "MATHEMATICS"}), wantNames: []string{"Baraka", "Dalia"}},
		{name: "location", path: path(map[string]string{"location": "goma"}), wantNames: []string{"Chausiku"}},
		{name: "min_experience", path: path(map[string]string{"min_experience": "5"}), wantNames: []string{"Chausiku", "Dalia"}},
		{name: "order by full_name", path: path(map[string]string{"ordering": "full_name"}), wantNames: []string{"Baraka", "Chausiku", "Dalia"}},
		{name: "order by price", path: path(map[string]string{"ordering": "price"}), wantNames: []string{"Baraka", "Dalia", "Chausiku"}},
		{name: "order by -experience_years", path: path(map[string]string{"ordering": "-experience_years"}), wantNames: []string{"Dalia", "Chausiku", "Baraka"}},
		{name: "unknown ordering ignored", path: path(map[string]string{"ordering": "password_hash"}), wantNames: []string{"Chausiku", "Baraka", "Dalia"}},
		{name: "no match", path: path(map[string]string{"subject": "History"}), wantNames: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, "")
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantNames, tutorNames(t, rec.Body.Bytes()))
		})
	}

	t.Run("invalid min_experience", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path(map[string]string{"min_experience": "many"}), "")
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_tutorApi_retrieve(t *testing.T) {
	app := setup(t)
	tutor := testutil.CreateTutor(t, app.usrRepo, "Baraka", "baraka@test.cd", "Mathematics", "Bukavu", 20, 2)
	student := testutil.CreateUser(t, app.usrRepo, "Amani", "amani@test.cd", user.RoleStudent)
	notFound := marchallObj(t, httpErr{Error: "Tutor not found."})

	app.run(t, []httpTest{
		{name: "unknown", method: http.MethodGet, path: "/api/tutors/999", wantCode: http.StatusNotFound, wantData: notFound},
		{name: "malformed id", method: http.MethodGet, path: "/api/tutors/abc", wantCode: http.StatusNotFound, wantData: notFound},
		{name: "not a tutor", method: http.MethodGet, path: fmt.Sprintf("/api/tutors/%d", student.ID), wantCode: http.StatusNotFound, wantData: notFound},
	})

	req, rec := newAuthRequest(http.MethodGet, fmt.Sprintf("/api/tutors/%d", tutor.ID), "")
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp tutorResp
	unmarshal(t, rec, &resp)
	assert.Equal(t, tutor.ID, resp.ID)
	assert.Nil(t, resp.ProfilePicture)
	assert.NotContains(t, rec.Body.String(), "password")
}

func Test_tutorApi_topAndRecommend(t *testing.T) {
	app := setup(t)
	student := testutil.SaveUser(t, app.usrRepo, user.User{
		FullName: "Amani", Email: "amani@test.cd", Role: user.RoleStudent, Bio: "I am from Goma",
	})
	goma := testutil.CreateTutor(t, app.usrRepo, "Chausiku", "chausiku@test.cd", "Mathematics", "Goma", 30, 5)
	best := testutil.CreateTutor(t, app.usrRepo, "Baraka", "baraka@test.cd", "Mathematics", "Bukavu", 20, 2)
	idle := testutil.CreateTutor(t, app.usrRepo, "Dalia", "dalia@test.cd", "Mathematics", "Kinshasa", 25, 8)
	testutil.CreateTutor(t, app.usrRepo, "Eli", "eli@test.cd", "Physics", "Goma", 25, 8)

	when := futureAt(10)
	score := func(tutorID, hoursLater, score int) {
		sess := testutil.CreateSession(t, app.sessRepo, student.ID, tutorID, 8, when.Add(-240*time.Hour).Add(time.Duration(hoursLater)*time.Hour), "completed")
		sess.PerformanceScore = &score
		_, err := app.sessRepo.UpdateSession(ctxBg, sess, "completed")
		require.NoError(t, err)
	}
	score(best.ID, 0, 5)
	score(best.ID, 2, 4)
	score(goma.ID, 4, 3)

	t.Run("top", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/tutors/top", "")
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var stats []struct {
			ID            int      `json:"id"`
			TotalSessions int      `json:"total_sessions"`
			AverageRating *float64 `json:"average_rating"`
		}
		unmarshal(t, rec, &stats)
		require.Len(t, stats, 4)
		assert.Equal(t, best.ID, stats[0].ID)
		assert.Equal(t, 2, stats[0].TotalSessions)
		require.NotNil(t, stats[0].AverageRating)
		assert.Equal(t, 4.5, *stats[0].AverageRating)
		assert.Equal(t, goma.ID, stats[1].ID)
		assert.Nil(t, stats[2].AverageRating)
		assert.Nil(t, stats[3].AverageRating)
	})

	app.run(t, []httpTest{
		{name: "recommend: auth required", method: http.MethodGet, path: "/api/tutors/recommend?subject=Mathematics", wantCode: http.StatusUnauthorized},
		{
			name: "recommend: students only", method: http.MethodGet, path: "/api/tutors/recommend?subject=Mathematics", token: app.getToken(t, idle),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "Only students can get recommendations."}),
		},
		{
			name: "recommend: subject required", method: http.MethodGet, path: "/api/tutors/recommend", token: app.getToken(t, student),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "Subject is required."}),
		},
	})

	t.Run("recommend", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/tutors/recommend?subject=mathematics", app.getToken(t, student))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var recs []struct {
			ID            int  `json:"id"`
			LocationMatch bool `json:"location_match"`
		}
		unmarshal(t, rec, &recs)
		require.Len(t, recs, 3)
		assert.Equal(t, goma.ID, recs[0].ID) // same place first
		assert.True(t, recs[0].LocationMatch)
		assert.Equal(t, best.ID, recs[1].ID)
		assert.Equal(t, idle.ID, recs[2].ID)
	})
}

func Test_tutorApi_search(t *testing.T) {
	app := setup(t)
	testutil.CreateTutor(t, app.usrRepo, "Chausiku", "chausiku@test.cd", "Physics", "Goma, North Kivu", 30, 5)
	testutil.CreateTutor(t, app.usrRepo, "Baraka", "baraka@test.cd", "Mathematics", "Bukavu", 20, 2)
	student := testutil.CreateUser(t, app.usrRepo, "Amani", "amani@test.cd", user.RoleStudent)

	req, rec := newAuthRequest(http.MethodGet, "/api/tutors/search?location=north", "")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/api/tutors/search?location=north", app.getToken(t, student))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"Chausiku"}, tutorNames(t, rec.Body.Bytes()))
}

func Test_tutorApi_updateProfile(t *testing.T) {
	app := setup(t)
	tutor := testutil.CreateTutor(t, app.usrRepo, "Baraka", "baraka@test.cd", "Mathematics", "Bukavu", 20, 2)
	student := testutil.CreateUser(t, app.usrRepo, "Amani", "amani@test.cd", user.RoleStudent)
	fields := map[string]string{"bio": "Patient teacher", "location": "Goma", "price": "35.5"}

	t.Run("tutors only", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/api/tutors/profile", app.getToken(t, student), fields)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("images only", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/api/tutors/profile", app.getToken(t, tutor), fields,
			formFile{field: "profile", name: "cv.txt", content: []byte("hello")})
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error": "Only image files are allowed."}`, rec.Body.String())
	})

	t.Run("updated", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/api/tutors/profile", app.getToken(t, tutor), fields,
			formFile{field: "profile", name: "me.PNG", content: pngContent})
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"message": "Profile updated successfully."}`, rec.Body.String())

		usr, err := app.usrRepo.GetUser(ctxBg, user.GetFilter{ID: tutor.ID})
		require.NoError(t, err)
		assert.Equal(t, "Patient teacher", usr.Bio)
		assert.Equal(t, "Goma", usr.Location)
		assert.Equal(t, 35.5, usr.Price)
		assert.True(t, strings.HasPrefix(usr.ProfilePicture, "profile-"))
		assert.True(t, strings.HasSuffix(usr.ProfilePicture, ".png"))
		_, err = os.Stat(filepath.Join(app.conf.Uploads.Dir, usr.ProfilePicture))
		assert.NoError(t, err)

		req, rec = newAuthRequest(http.MethodGet, "/api/tutors/me", app.getToken(t, tutor))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp tutorResp
		unmarshal(t, rec, &resp)
		require.NotNil(t, resp.ProfilePicture)
		assert.Equal(t, "http://example.com/uploads/"+usr.ProfilePicture, *resp.ProfilePicture)
	})

	t.Run("picture kept without upload", func(t *testing.T) {
		before, err := app.usrRepo.GetUser(ctxBg, user.GetFilter{ID: tutor.ID})
		require.NoError(t, err)

		req, rec := newMultipartRequest(t, http.MethodPost, "/api/tutors/profile", app.getToken(t, tutor), fields)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		after, err := app.usrRepo.GetUser(ctxBg, user.GetFilter{ID: tutor.ID})
		require.NoError(t, err)
		assert.Equal(t, before.ProfilePicture, after.ProfilePicture)
	})
}

func Test_tutorApi_changePassword(t *testing.T) {
	app := setup(t)
	tutor := testutil.CreateTutor(t, app.usrRepo, "Baraka", "baraka@test.cd", "Mathematics", "Bukavu", 20, 2)
	token := app.getToken(t, tutor)

	change := func(current, newPw string) []byte {
		return marchallObj(t, map[string]string{"current": current, "newPw": newPw})
	}

	app.run(t, []httpTest{
		{
			name: "wrong current password", method: http.MethodPost, path: "/api/tutors/change-password", token: token,
			body:     change("wrong-pwd", "n3w-s3cret!"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "Current password is incorrect."}),
		},
		{
			name: "weak new password", method: http.MethodPost, path: "/api/tutors/change-password", token: token,
			body:     change(testutil.Password, "short"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Invalid data.", Fields: map[string]string{"newPw": "password must contain at least 8 characters"}}),
		},
		{
			name: "updated", method: http.MethodPost, path: "/api/tutors/change-password", token: token,
			body: change(testutil.Password, "n3w-s3cret!"), wantData: marchallObj(t, message{Message: "Password updated."}),
		},
	})

	usr, err := app.usrRepo.GetUser(ctxBg, user.GetFilter{ID: tutor.ID})
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("n3w-s3cret!"))
}

func Test_tutorApi_availability(t *testing.T) {
	app := setup(t)
	tutor := testutil.CreateTutor(t, app.usrRepo, "Baraka", "baraka@test.cd", "Mathematics", "Bukavu", 20, 2)
	token := app.getToken(t, tutor)
	testutil.AddSlot(t, app.availRepo, tutor.ID, "Friday", "08:00", "10:00")

	slots := func(s ...[3]string) []byte {
		list := make([]map[string]string, 0, len(s))
		for _, sl := range s {
			list = append(list, map[string]string{"day_of_week": sl[0], "start_time": sl[1], "end_time": sl[2]})
		}
		return marchallObj(t, map[string]interface{}{"slots": list})
	}

	app.run(t, []httpTest{
		{
			name: "end before start", method: http.MethodPost, path: "/api/tutors/availability", token: token,
			body:     slots([3]string{"Monday", "10:00", "09:00"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Invalid data.", Fields: map[string]string{"end_time": "end_time must be after start_time"}}),
		},
		{
			name: "unknown day", method: http.MethodPost, path: "/api/tutors/availability", token: token,
			body:     slots([3]string{"Funday", "09:00", "10:00"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Invalid data.", Fields: map[string]string{"day_of_week": "day_of_week must be a day of the week"}}),
		},
		{
			name: "replaced", method: http.MethodPost, path: "/api/tutors/availability", token: token,
			body:     slots([3]string{"wednesday", "14:00", "16:00"}, [3]string{"Monday", "13:00", "15:00"}, [3]string{"Monday", "08:00", "10:00"}),
			wantData: marchallObj(t, message{Message: "Availability updated."}),
		},
	})

	for _, path := range []string{"/api/tutors/me/availability", fmt.Sprintf("/api/tutors/%d/availability", tutor.ID)} {
		t.Run(path, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, path, token)
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var got []struct {
				DayOfWeek string `json:"day_of_week"`
				StartTime string `json:"start_time"`
				EndTime   string `json:"end_time"`
			}
			unmarshal(t, rec, &got)
			require.Len(t, got, 3) // Friday slot is gone
			assert.Equal(t, "Monday", got[0].DayOfWeek)
			assert.Equal(t, "08:00:00", got[0].StartTime)
			assert.Equal(t, "Monday", got[1].DayOfWeek)
			assert.Equal(t, "13:00:00", got[1].StartTime)
			assert.Equal(t, "Wednesday", got[2].DayOfWeek)
			assert.Equal(t, "16:00:00", got[2].EndTime)
		})
	}
}

func Test_tutorApi_apply(t *testing.T) {
	app := setup(t)
	testutil.CreateUser(t, app.usrRepo, "Amani", "amani@test.cd", user.RoleStudent)

	fields := func(email string) map[string]string {
		return map[string]string{
			"full_name": "Furaha", "email": email, "password": "t3ach!ng-pwd", "bio": "Chemist",
			"location": "Goma", "subject": "Chemistry", "price": "15", "experience_years": "4",
		}
	}

	t.Run("fields required", func(t *testing.T) {
		f := fields("furaha@test.cd")
		delete(f, "bio")
		req, rec := newMultipartRequest(t, http.MethodPost, "/api/tutors/apply", "", f)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error": "All fields are required."}`, rec.Body.String())
	})

	t.Run("user email taken", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/api/tutors/apply", "", fields("amani@test.cd"),
			formFile{field: "profile_picture", name: "me.png", content: pngContent})
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error": "Application with this email already exists."}`, rec.Body.String())
		assert.Empty(t, uploadedFiles(t, app.conf.Uploads.Dir), "rejected upload kept")
	})

	t.Run("applied", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/api/tutors/apply", "", fields("furaha@test.cd"),
			formFile{field: "profile_picture", name: "me.png", content: pngContent})
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp struct {
			Message     string `json:"message"`
			Application struct {
				ID              int     `json:"id"`
				Status          string  `json:"status"`
				Price           float64 `json:"price"`
				ExperienceYears int     `json:"experience_years"`
				ProfilePicture  string  `json:"profile_picture"`
			} `json:"application"`
		}
		unmarshal(t, rec, &resp)
		assert.Equal(t, "Application submitted successfully.", resp.Message)
		assert.Equal(t, "pending", resp.Application.Status)
		assert.Equal(t, 15.0, resp.Application.Price)
		assert.Equal(t, 4, resp.Application.ExperienceYears)
		assert.NotEmpty(t, resp.Application.ProfilePicture)
		assert.NotContains(t, rec.Body.String(), "password")
	})

	t.Run("pending application exists", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/api/tutors/apply", "", fields("FURAHA@test.cd"),
			formFile{field: "profile", name: "again.png", content: pngContent})
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error": "Application with this email already exists."}`, rec.Body.String())
		assert.Len(t, uploadedFiles(t, app.conf.Uploads.Dir), 1) // the accepted application's only
	})
}

func uploadedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
