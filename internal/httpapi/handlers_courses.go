package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Spok95/attendance-tracker/internal/course"
	"github.com/Spok95/attendance-tracker/internal/schedule"
)

func (h *handler) listCourses(c *gin.Context) {
	list, err := h.Courses.List(c.Request.Context(), actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"courses": list})
}

func (h *handler) createCourse(c *gin.Context) {
	var in course.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, badRequest(err))
		return
	}
	created, err := h.Courses.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *handler) getCourse(c *gin.Context) {
	id, err := idParam(c, "courseID")
	if err != nil {
		h.fail(c, err)
		return
	}
	got, err := h.Courses.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

func (h *handler) updateCourse(c *gin.Context) {
	id, err := idParam(c, "courseID")
	if err != nil {
		h.fail(c, err)
		return
	}
	var in course.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, badRequest(err))
		return
	}
	updated, err := h.Courses.Update(c.Request.Context(), actor(c), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *handler) deleteCourse(c *gin.Context) {
	id, err := idParam(c, "courseID")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.Courses.Delete(c.Request.Context(), actor(c), id, forceParam(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) joinCourse(c *gin.Context) {
	var in struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, badRequest(err))
		return
	}
	joined, err := h.Courses.Join(c.Request.Context(), actor(c), in.Code)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, joined)
}

func (h *handler) leaveCourse(c *gin.Context) {
	id, err := idParam(c, "courseID")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.Courses.Leave(c.Request.Context(), actor(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) courseStudents(c *gin.Context) {
	id, err := idParam(c, "courseID")
	if err != nil {
		h.fail(c, err)
		return
	}
	list, err := h.Courses.Students(c.Request.Context(), actor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": list})
}

func (h *handler) listSchedules(c *gin.Context) {
	id, err := idParam(c, "courseID")
	if err != nil {
		h.fail(c, err)
		return
	}
	list, err := h.Schedules.List(c.Request.Context(), actor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": list})
}

func (h *handler) applySchedule(c *gin.Context) {
	id, err := idParam(c, "courseID")
	if err != nil {
		h.fail(c, err)
		return
	}
	var in schedule.RuleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, badRequest(err))
		return
	}
	u := actor(c)
	res, err := h.Schedules.ApplyDays(c.Request.Context(), u, id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"schedules": res.Schedules, "generated": h.sessionViews(u, res.Generated)})
}

func (h *handler) generateSessions(c *gin.Context) {
	id, err := idParam(c, "courseID")
	if err != nil {
		h.fail(c, err)
		return
	}
	var in struct {
		WeeksAhead int `json:"weeks_ahead"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			h.fail(c, badRequest(err))
			return
		}
	}
	u := actor(c)
	created, err := h.Schedules.Generate(c.Request.Context(), u, id, in.WeeksAhead)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"generated": h.sessionViews(u, created)})
}

func (h *handler) deactivateSchedule(c *gin.Context) {
	courseID, err := idParam(c, "courseID")
	if err != nil {
		h.fail(c, err)
		return
	}
	scheduleID, err := idParam(c, "scheduleID")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.Schedules.Deactivate(c.Request.Context(), actor(c), courseID, scheduleID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
