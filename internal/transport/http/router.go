package handlers

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/waste3d/coursehub-api/internal/infrastructure/security"
	"github.com/waste3d/coursehub-api/internal/middleware"
)

func NewRouter(
	authHandler *AuthHandler,
	courseHandler *CourseHandler,
	checkoutHandler *CheckoutHandler,
	dashboardHandler *DashboardHandler,
	limiter *middleware.RateLimiter,
	tokenManager *security.TokenManager,
	allowedOrigins []string,
) *gin.Engine {
	r := gin.Default()

	config := cors.DefaultConfig()
	config.AllowOrigins = allowedOrigins
	config.AllowCredentials = true
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Stripe-Signature"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}
	r.Use(cors.New(config))

	api := r.Group("/api/v1")
	{
		// Вебхук живет вне auth-группы: его зовет провайдер, не клиент
		api.POST("/webhook", checkoutHandler.Webhook)

		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", limiter.Limit("login", 5, 1*time.Minute), authHandler.Login)
		}

		api.GET("/courses", courseHandler.List)
		api.GET("/courses/filter", courseHandler.FilterByTags)
		api.GET("/courses/tags/popular", courseHandler.PopularTags)
		api.GET("/courses/:id/comments", courseHandler.Comments)
		api.GET("/courses/:id/comments/:commentId/replies", courseHandler.Replies)

		private := api.Group("")
		private.Use(middleware.AuthMiddleware(tokenManager))
		{
			private.GET("/students/me", authHandler.Me)

			private.GET("/courses/:id", courseHandler.GetOne)
			private.GET("/courses/:id/chapters/:chapterId", courseHandler.ChapterDetail)
			private.GET("/courses/:id/state", courseHandler.CourseState)
			private.POST("/courses/:id/videos/:videoId/complete", courseHandler.MarkCompleted)
			private.POST("/courses/:id/comments", courseHandler.AddComment)
			private.POST("/courses/:id/comments/:commentId/replies", courseHandler.AddReply)
			private.POST("/courses/:id/rate", courseHandler.Rate)
			private.GET("/videos/:videoId", courseHandler.VideoDetail)
			private.GET("/chapters/:chapterId/course", courseHandler.CourseByChapter)

			teacher := private.Group("/teacher")
			{
				teacher.POST("/courses", courseHandler.Create)
				teacher.PATCH("/courses/:id", courseHandler.Edit)
				teacher.PUT("/courses/:id/tags", courseHandler.ReplaceTags)
				teacher.POST("/courses/:id/benefits", courseHandler.AddBenefits)
				teacher.POST("/courses/:id/chapters", courseHandler.CreateChapter)
				teacher.PATCH("/courses/:id/chapters/:chapterId", courseHandler.UpdateChapter)
				teacher.PATCH("/courses/:id/videos/:videoId", courseHandler.UpdateVideo)
			}

			checkout := private.Group("/checkout")
			{
				checkout.POST("/courses/:id", checkoutHandler.CourseCheckout)
				checkout.GET("/verify", checkoutHandler.Verify)
				checkout.POST("/subscription", checkoutHandler.Subscription)
				checkout.POST("/portal", checkoutHandler.Portal)
			}

			dashboard := private.Group("/dashboard")
			{
				dashboard.PUT("/profile", dashboardHandler.UpdateName)
				dashboard.GET("/transactions", dashboardHandler.Transactions)
				dashboard.GET("/courses", dashboardHandler.BrowseCourses)
				dashboard.GET("/analytics", dashboardHandler.Analytics)
				dashboard.GET("/teacher/courses", dashboardHandler.TeacherCourses)
			}
		}
	}

	return r
}
