package echoapi

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorconnect/core"
	"github.com/trezcool/tutorconnect/core/user"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

type uploadStore struct {
	dir       string
	urlPrefix string
}

func newUploadStore(conf *core.Config) *uploadStore {
	return &uploadStore{dir: conf.Uploads.Dir, urlPrefix: conf.Uploads.URLPrefix}
}

// saveProfilePicture stores the first image found under fields and returns its file name.
// An empty name means no file was sent.
func (st *uploadStore) saveProfilePicture(ctx echo.Context, fields ...string) (string, error) {
	var fh *multipart.FileHeader
	for _, field := range fields {
		h, err := ctx.FormFile(field)
		if err == nil {
			fh = h
			break
		}
		if err != http.ErrMissingFile && err != http.ErrNotMultipart {
			return "", errors.Wrap(err, "reading form file")
		}
	}
	if fh == nil {
		return "", nil
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !imageExts[ext] {
		return "", errInvalidFile
	}

	src, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(err, "opening upload")
	}
	defer src.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", errors.Wrap(err, "reading upload")
	}
	if !strings.HasPrefix(http.DetectContentType(head[:n]), "image/") {
		return "", errInvalidFile
	}

	if err = os.MkdirAll(st.dir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating uploads dir")
	}
	name := fmt.Sprintf("profile-%d-%s%s", time.Now().UnixNano(), uuid.NewString(), ext)
	dst, err := os.Create(filepath.Join(st.dir, name))
	if err != nil {
		return "", errors.Wrap(err, "creating upload file")
	}
	defer dst.Close()

	if _, err = dst.Write(head[:n]); err == nil {
		_, err = io.Copy(dst, src)
	}
	if err != nil {
		st.remove(name)
		return "", errors.Wrap(err, "writing upload file")
	}
	return name, nil
}

// remove deletes a stored file whose record could not be saved.
func (st *uploadStore) remove(name string) {
	if name == "" {
		return
	}
	_ = os.Remove(filepath.Join(st.dir, name))
}

// url is the absolute URL of a stored file, nil when there is none.
func (st *uploadStore) url(ctx echo.Context, name string) *string {
	if name == "" {
		return nil
	}
	u := ctx.Scheme() + "://" + ctx.Request().Host + path.Join(st.urlPrefix, name)
	return &u
}

// views rendering profile_picture as an absolute URL

type (
	tutorView struct {
		user.User
		ProfilePicture *string `json:"profile_picture"`
	}

	tutorStatsView struct {
		user.TutorStats
		ProfilePicture *string `json:"profile_picture"`
	}

	recommendationView struct {
		user.Recommendation
		ProfilePicture *string `json:"profile_picture"`
	}
)

func (st *uploadStore) tutorViews(ctx echo.Context, tutors []user.User) []tutorView {
	views := make([]tutorView, 0, len(tutors))
	for _, t := range tutors {
		views = append(views, tutorView{User: t, ProfilePicture: st.url(ctx, t.ProfilePicture)})
	}
	return views
}

func (st *uploadStore) tutorStatsViews(ctx echo.Context, stats []user.TutorStats) []tutorStatsView {
	views := make([]tutorStatsView, 0, len(stats))
	for _, t := range stats {
		views = append(views, tutorStatsView{TutorStats: t, ProfilePicture: st.url(ctx, t.ProfilePicture)})
	}
	return views
}

func (st *uploadStore) recommendationViews(ctx echo.Context, recs []user.Recommendation) []recommendationView {
	views := make([]recommendationView, 0, len(recs))
	for _, r := range recs {
		views = append(views, recommendationView{Recommendation: r, ProfilePicture: st.url(ctx, r.ProfilePicture)})
	}
	return views
}
