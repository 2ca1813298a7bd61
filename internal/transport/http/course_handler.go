package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/waste3d/coursehub-api/internal/application/usecase"
	"github.com/waste3d/coursehub-api/internal/domain"
)

type CourseHandler struct {
	courses *usecase.CourseUseCase
	access  *usecase.EntitlementResolver
}

func NewCourseHandler(courses *usecase.CourseUseCase, access *usecase.EntitlementResolver) *CourseHandler {
	return &CourseHandler{courses: courses, access: access}
}

// GET /api/v1/courses?limit=&offset=
func (h *CourseHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	courses, err := h.courses.Courses(c, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, courses)
}

// GET /api/v1/courses/:id
func (h *CourseHandler) GetOne(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	course, err := h.courses.GetCourse(c, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, course)
}

// GET /api/v1/courses/filter?tags=go,db
func (h *CourseHandler) FilterByTags(c *gin.Context) {
	raw := c.Query("tags")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tags query is required"})
		return
	}

	courses, err := h.courses.FilterByTags(c, strings.Split(raw, ","))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, courses)
}

// GET /api/v1/courses/tags/popular
func (h *CourseHandler) PopularTags(c *gin.Context) {
	tags, err := h.courses.MostUsedTags(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

// POST /api/v1/teacher/courses (multipart: title, description, price, image)
func (h *CourseHandler) Create(c *gin.Context) {
	teacherID, ok := studentID(c)
	if !ok {
		return
	}

	price, err := strconv.Atoi(c.PostForm("price"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
		return
	}

	in := usecase.CreateCourseInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Price:       price,
	}
	if file, err := c.FormFile("image"); err == nil {
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "broken image upload"})
			return
		}
		defer f.Close()
		in.Image = f
		in.ImageName = file.Filename
	}

	course, err := h.courses.CreateCourse(c, teacherID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, course)
}

// PATCH /api/v1/teacher/courses/:id
func (h *CourseHandler) Edit(c *gin.Context) {
	teacherID, ok := studentID(c)
	if !ok {
		return
	}
	courseID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var patch usecase.CoursePatch
	if v, exists := c.GetPostForm("title"); exists {
		patch.Title = &v
	}
	if v, exists := c.GetPostForm("description"); exists {
		patch.Description = &v
	}
	if v, exists := c.GetPostForm("price"); exists {
		price, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
			return
		}
		patch.Price = &price
	}
	if v, exists := c.GetPostForm("visibility"); exists {
		vis := domain.Visibility(v)
		patch.Visibility = &vis
	}
	if v, exists := c.GetPostForm("tags"); exists {
		patch.Tags = strings.Split(v, ",")
	}
	if file, err := c.FormFile("image"); err == nil {
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "broken image upload"})
			return
		}
		defer f.Close()
		patch.Image = f
		patch.ImageName = file.Filename
	}

	course, err := h.courses.EditCourse(c, teacherID, courseID, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, course)
}

// PUT /api/v1/teacher/courses/:id/tags — полный набор + переименования по id
func (h *CourseHandler) ReplaceTags(c *gin.Context) {
	teacherID, ok := studentID(c)
	if !ok {
		return
	}
	courseID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Tags    []string            `json:"tags" binding:"required"`
		Renames []usecase.TagRename `json:"renames"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, err := h.courses.EditCourse(c, teacherID, courseID, usecase.CoursePatch{
		Tags:       req.Tags,
		TagRenames: req.Renames,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// POST /api/v1/teacher/courses/:id/benefits
func (h *CourseHandler) AddBenefits(c *gin.Context) {
	teacherID, ok := studentID(c)
	if !ok {
		return
	}
	courseID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req []usecase.BenefitInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	benefits, err := h.courses.AddBenefits(c, teacherID, courseID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, benefits)
}

// POST /api/v1/teacher/courses/:id/chapters (multipart: title, position, videos[])
func (h *CourseHandler) CreateChapter(c *gin.Context) {
	teacherID, ok := studentID(c)
	if !ok {
		return
	}
	courseID, ok := pathID(c, "id")
	if !ok {
		return
	}

	position, err := strconv.Atoi(c.DefaultPostForm("position", "1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid position"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form is required"})
		return
	}

	var uploads []usecase.VideoUpload
	for i, file := range form.File["videos"] {
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "broken video upload"})
			return
		}
		defer f.Close()

		title := file.Filename
		if titles := form.Value["videoTitles"]; i < len(titles) {
			title = titles[i]
		}
		state := domain.VideoPremium
		if states := form.Value["videoStates"]; i < len(states) && states[i] == string(domain.VideoFree) {
			state = domain.VideoFree
		}
		uploads = append(uploads, usecase.VideoUpload{
			Title:    title,
			State:    state,
			FileName: file.Filename,
			File:     f,
		})
	}

	chapter, err := h.courses.CreateChapter(c, teacherID, courseID, c.PostForm("title"), position, uploads)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, chapter)
}

// PATCH /api/v1/teacher/courses/:id/chapters/:chapterId
func (h *CourseHandler) UpdateChapter(c *gin.Context) {
	teacherID, ok := studentID(c)
	if !ok {
		return
	}
	courseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	chapterID, ok := pathID(c, "chapterId")
	if !ok {
		return
	}

	var req struct {
		Title      *string                   `json:"title"`
		Position   *int                      `json:"position"`
		Visibility *domain.ChapterVisibility `json:"visibility"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chapter, err := h.courses.UpdateChapter(c, teacherID, courseID, chapterID, usecase.ChapterPatch{
		Title:      req.Title,
		Order:      req.Position,
		Visibility: req.Visibility,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chapter)
}

// PATCH /api/v1/teacher/courses/:id/videos/:videoId (multipart)
func (h *CourseHandler) UpdateVideo(c *gin.Context) {
	teacherID, ok := studentID(c)
	if !ok {
		return
	}
	courseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	videoID, ok := pathID(c, "videoId")
	if !ok {
		return
	}

	var patch usecase.VideoPatch
	if v, exists := c.GetPostForm("title"); exists {
		patch.Title = &v
	}
	if v, exists := c.GetPostForm("state"); exists {
		state := domain.VideoState(v)
		patch.State = &state
	}
	if file, err := c.FormFile("video"); err == nil {
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "broken video upload"})
			return
		}
		defer f.Close()
		patch.File = f
		patch.FileName = file.Filename
	}
	if file, err := c.FormFile("thumbnail"); err == nil {
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "broken thumbnail upload"})
			return
		}
		defer f.Close()
		patch.Thumb = f
		patch.ThumbName = file.Filename
	}

	video, err := h.courses.UpdateVideo(c, teacherID, courseID, videoID, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

// GET /api/v1/courses/:id/chapters/:chapterId
func (h *CourseHandler) ChapterDetail(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	courseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	chapterID, ok := pathID(c, "chapterId")
	if !ok {
		return
	}

	chapter, err := h.courses.ChapterDetail(c, courseID, chapterID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chapter)
}

// GET /api/v1/chapters/:chapterId/course — курс по id главы
func (h *CourseHandler) CourseByChapter(c *gin.Context) {
	chapterID, ok := pathID(c, "chapterId")
	if !ok {
		return
	}
	course, err := h.courses.CourseByChapter(c, chapterID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, course)
}

// GET /api/v1/videos/:videoId
func (h *CourseHandler) VideoDetail(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	videoID, ok := pathID(c, "videoId")
	if !ok {
		return
	}

	video, err := h.courses.VideoDetail(c, videoID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

// GET /api/v1/courses/:id/state
func (h *CourseHandler) CourseState(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	courseID, ok := pathID(c, "id")
	if !ok {
		return
	}

	progress, err := h.access.CourseStateDetail(c, courseID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// POST /api/v1/courses/:id/videos/:videoId/complete
func (h *CourseHandler) MarkCompleted(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	courseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	videoID, ok := pathID(c, "videoId")
	if !ok {
		return
	}

	var req struct {
		Completed bool `json:"completed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	progress, err := h.access.MarkCompleted(c, id, courseID, videoID, req.Completed)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// POST /api/v1/courses/:id/comments
func (h *CourseHandler) AddComment(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	courseID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.courses.AddComment(c, id, courseID, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// GET /api/v1/courses/:id/comments
func (h *CourseHandler) Comments(c *gin.Context) {
	courseID, ok := pathID(c, "id")
	if !ok {
		return
	}

	comments, err := h.courses.Comments(c, courseID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

// POST /api/v1/courses/:id/comments/:commentId/replies
func (h *CourseHandler) AddReply(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	commentID, ok := pathID(c, "commentId")
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply, err := h.courses.AddReply(c, id, commentID, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reply)
}

// GET /api/v1/courses/:id/comments/:commentId/replies
func (h *CourseHandler) Replies(c *gin.Context) {
	commentID, ok := pathID(c, "commentId")
	if !ok {
		return
	}

	replies, err := h.courses.Replies(c, commentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, replies)
}

// POST /api/v1/courses/:id/rate
func (h *CourseHandler) Rate(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	courseID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Rate int `json:"rate" binding:"required,min=1,max=5"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.courses.Rate(c, id, courseID, req.Rate); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
