package controllers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/app/repository"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 100
)

// NotificationController lists and acknowledges the caller's notifications.
type NotificationController struct {
	notifications repository.NotificationRepository
	now           func() time.Time
}

func NewNotificationController(notifications repository.NotificationRepository) *NotificationController {
	return &NotificationController{
		notifications: notifications,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// HandleList returns one page of notifications, newest first.
func (nc *NotificationController) HandleList(c *fiber.Ctx) error {
	userID, ok := requireCaller(c)
	if !ok {
		return unauthorized(c)
	}

	limit := c.QueryInt("limit", defaultNotificationLimit)
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	unread, _ := strconv.ParseBool(c.Query("unread", "false"))

	repo := nc.notifications
	items, total, err := repo.List(repository.NotificationFilter{
		UserID:     userID,
		Type:       strings.TrimSpace(c.Query("type")),
		UnreadOnly: unread,
		Offset:     offset,
		Limit:      limit,
	})
	if err != nil {
		return respondError(c, "Failed to fetch notifications", err)
	}
	unreadCount, err := repo.CountUnread(userID)
	if err != nil {
		return respondError(c, "Failed to fetch notifications", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    items,
		"count":   total,
		"unread":  unreadCount,
		"limit":   limit,
		"offset":  offset,
	})
}

// HandleMarkRead marks one of the caller's notifications as read.
func (nc *NotificationController) HandleMarkRead(c *fiber.Ctx) error {
	userID, ok := requireCaller(c)
	if !ok {
		return unauthorized(c)
	}
	id := c.Params("id")

	repo := nc.notifications
	n, err := repo.MarkRead(id, userID, nc.now())
	if err != nil {
		return respondError(c, "Failed to update notification", err)
	}
	if n == 0 {
		// Already read is fine; anything else is not the caller's.
		existing, err := repo.GetByID(id)
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && existing.UserID != userID) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Notification not found"})
		}
		if err != nil {
			return respondError(c, "Failed to update notification", err)
		}
	}
	return c.JSON(fiber.Map{"success": true})
}

// HandleMarkAllRead clears the caller's unread notifications.
func (nc *NotificationController) HandleMarkAllRead(c *fiber.Ctx) error {
	userID, ok := requireCaller(c)
	if !ok {
		return unauthorized(c)
	}
	n, err := nc.notifications.MarkAllRead(userID, nc.now())
	if err != nil {
		return respondError(c, "Failed to update notifications", err)
	}
	return c.JSON(fiber.Map{"success": true, "updated": n})
}
