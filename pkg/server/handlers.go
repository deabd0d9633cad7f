package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"

	"github.com/kerbaras/onepiece-offline/pkg/data"
	"github.com/kerbaras/onepiece-offline/pkg/errcodes"
	"github.com/kerbaras/onepiece-offline/pkg/integrations"
	"github.com/kerbaras/onepiece-offline/pkg/notify"
	"github.com/kerbaras/onepiece-offline/pkg/scheduler"
	"github.com/kerbaras/onepiece-offline/pkg/services"
)

type handler struct {
	ctrl *services.Controller
}

func (h *handler) health(c echo.Context) error {
	return errors.WithStack(c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
	}))
}

func chapterNumber(c echo.Context) (int, error) {
	n, err := strconv.Atoi(c.Param("number"))
	if err != nil || n <= 0 {
		return 0, errcodes.NotFound("Chapter")
	}
	return n, nil
}

func (h *handler) listChapters(c echo.Context) error {
	params := ListChaptersQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}
	chapters, err := h.ctrl.ListChapters(c.Request().Context(), params.ByDate, params.Limit)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, chapters))
}

func (h *handler) download(c echo.Context) error {
	ctx := c.Request().Context()
	number, err := chapterNumber(c)
	if err != nil {
		return err
	}
	force := false
	if v := c.QueryParam("force"); v != "" {
		if force, err = strconv.ParseBool(v); err != nil {
			return errcodes.ValidationTypeError(`"force" should be of type bool`)
		}
	}

	var chapter *data.DownloadedChapter
	if force {
		chapter, err = h.ctrl.Downloader.Redownload(ctx, number)
	} else {
		chapter, err = h.ctrl.Downloader.DownloadChapter(ctx, number)
	}
	if errors.Is(err, data.ErrNotAvailable) {
		return errcodes.NotAvailable(number)
	}
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, DownloadResponse{
		ChapterSummary: h.ctrl.Summary(chapter),
		Status:         "downloaded",
	}))
}

func (h *handler) deleteChapter(c echo.Context) error {
	number, err := chapterNumber(c)
	if err != nil {
		return err
	}
	if err := h.ctrl.Downloader.Delete(c.Request().Context(), number); err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return errcodes.NotFound("Chapter")
		}
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "deleted",
		"chapter": number,
		"message": fmt.Sprintf("Chapter %d deleted successfully", number),
	}))
}

// deleteMultiple takes a bare JSON array of chapter numbers.
func (h *handler) deleteMultiple(c echo.Context) error {
	var numbers []int
	if err := json.NewDecoder(c.Request().Body).Decode(&numbers); err != nil {
		return errcodes.MalformedPayload()
	}
	result := h.ctrl.DeleteChapters(c.Request().Context(), numbers)
	return errors.WithStack(c.JSON(http.StatusOK, DeleteMultipleResponse{
		Status:         "completed",
		DeleteResult:   result,
		TotalRequested: len(numbers),
		TotalDeleted:   len(result.Deleted),
	}))
}

// file serves a chapter package, building it from the stored images if that
// format was never produced.
func (h *handler) file(c echo.Context) error {
	number, err := chapterNumber(c)
	if err != nil {
		return err
	}
	format, err := integrations.ParseFormat(c.Param("format"))
	if err != nil {
		return errcodes.NotFound("Format")
	}
	path, err := h.ctrl.Downloader.EnsureFormat(c.Request().Context(), number, format)
	if errors.Is(err, data.ErrNotFound) {
		return errcodes.NotFound(fmt.Sprintf("Chapter %d", number))
	}
	if err != nil {
		return errors.WithStack(err)
	}
	c.Response().Header().Set(echo.HeaderContentType, contentTypes[format])
	return c.Attachment(path, fmt.Sprintf("onepiece_chapter_%d.%s", number, format.Ext()))
}

var contentTypes = map[integrations.Format]string{
	integrations.FormatEPUB: "application/epub+zip",
	integrations.FormatCBZ:  "application/vnd.comicbook+zip",
	integrations.FormatPDF:  "application/pdf",
}

func (h *handler) latest(c echo.Context) error {
	entry, err := h.ctrl.Latest(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{
		"latest": entry.Number,
		"title":  entry.Title,
	}))
}

func (h *handler) available(c echo.Context) error {
	entries, err := h.ctrl.Available(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}
	chapters := make([]AvailableChapter, 0, len(entries))
	for _, e := range entries {
		chapters = append(chapters, AvailableChapter{
			Number:    e.Number,
			Title:     e.Title,
			Date:      e.Date,
			Available: e.Available,
			Pages:     e.PageCount,
		})
	}
	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{
		"chapters":     chapters,
		"total":        len(chapters),
		"last_refresh": h.ctrl.Updates.LastRefresh(),
	}))
}

func (h *handler) notify(c echo.Context) error {
	params := NotifyPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}
	entries, _, err := h.ctrl.NotifySince(c.Request().Context(), params.CurrentLatest, params.Recipient)
	if err != nil {
		return errors.WithStack(err)
	}
	numbers := make([]int, 0, len(entries))
	for _, e := range entries {
		numbers = append(numbers, e.Number)
	}
	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{"new_chapters": numbers}))
}

func (h *handler) vapidPublicKey(c echo.Context) error {
	return errors.WithStack(c.JSON(http.StatusOK, map[string]string{"publicKey": h.ctrl.VAPIDPublicKey()}))
}

func (h *handler) subscribe(c echo.Context) error {
	params := SubscribePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}
	_, err := h.ctrl.Push.Subscriptions().Add(notify.Subscription{
		Endpoint: params.Endpoint,
		Keys:     notify.SubscriptionKeys{P256dh: params.Keys.P256dh, Auth: params.Keys.Auth},
	})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, map[string]string{
		"status":  "subscribed",
		"message": "Successfully subscribed to push notifications",
	}))
}

func (h *handler) unsubscribe(c echo.Context) error {
	endpoint := c.QueryParam("endpoint")
	if endpoint == "" {
		params := UnsubscribePayload{}
		if err := c.Bind(&params); err != nil {
			return errors.WithStack(err)
		}
		endpoint = params.Endpoint
	}
	removed, err := h.ctrl.Push.Subscriptions().Remove(endpoint)
	if err != nil {
		return errors.WithStack(err)
	}
	if !removed {
		return errors.WithStack(c.JSON(http.StatusOK, map[string]string{
			"status":  "not_found",
			"message": "Subscription not found",
		}))
	}
	return errors.WithStack(c.JSON(http.StatusOK, map[string]string{
		"status":  "unsubscribed",
		"message": "Successfully unsubscribed from push notifications",
	}))
}

func (h *handler) sendPush(c echo.Context) error {
	params := SendPushPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}
	count, err := h.ctrl.Push.Send(c.Request().Context(), notify.NewPayload(params.Title, params.Message, params.Data))
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "sent",
		"message": fmt.Sprintf("Push notification sent to %d subscribers", count),
		"count":   count,
	}))
}

func (h *handler) pushStats(c echo.Context) error {
	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{
		"subscribers":    h.ctrl.Push.Subscriptions().Count(),
		"service_active": h.ctrl.Push.Enabled(),
	}))
}

func (h *handler) schedulerStatus(c echo.Context) error {
	return errors.WithStack(c.JSON(http.StatusOK, h.ctrl.Scheduler.Status()))
}

func (h *handler) poll(c echo.Context) error {
	report, err := h.ctrl.Scheduler.PollNow(c.Request().Context())
	if errors.Is(err, scheduler.ErrPollInProgress) {
		return errcodes.Conflict("A poll is already in progress.")
	}
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, report))
}
