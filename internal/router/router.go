package router

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-sis-api/internal/handler"
	"github.com/noah-isme/uni-sis-api/internal/middleware"
	"github.com/noah-isme/uni-sis-api/internal/models"
	"github.com/noah-isme/uni-sis-api/internal/repository"
	"github.com/noah-isme/uni-sis-api/internal/service"
)

// Handlers bundles every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth        *handler.AuthHandler
	User        *handler.UserHandler
	Student     *handler.StudentHandler
	Faculty     *handler.FacultyHandler
	College     *handler.CollegeHandler
	Course      *handler.CourseHandler
	Curriculum  *handler.CurriculumHandler
	Batch       *handler.BatchHandler
	Term        *handler.TermHandler
	Section     *handler.SectionHandler
	Enrollment  *handler.EnrollmentHandler
	Grade       *handler.GradeHandler
	GPA         *handler.GPAHandler
	Attendance  *handler.AttendanceHandler
	Application *handler.ApplicationHandler
	Policy      *handler.PolicyHandler
	Transcript  *handler.TranscriptHandler
	Metrics     *handler.MetricsHandler
}

// Deps carries the cross-cutting services used by route middleware.
type Deps struct {
	Auth        *service.AuthService
	Metrics     *service.MetricsService
	Users       *repository.UserRepository
	Permissions models.RolePermissions
}

// Setup mounts all API routes on the engine.
func Setup(r *gin.Engine, h Handlers, deps Deps) {
	perms := deps.Permissions
	requirePerm := func(p models.Permission) gin.HandlerFunc {
		return middleware.RequirePermission(perms, p)
	}

	r.GET("/metrics", h.Metrics.Prometheus)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.WithResponseMeta())
	if deps.Metrics != nil {
		v1.Use(middleware.Metrics(deps.Metrics))
	}

	auth := v1.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/forgot-password", h.Auth.ForgotPassword)
		auth.POST("/reset-password", h.Auth.ResetPassword)
	}

	// Download uses a signed token instead of a JWT so exported files can be
	// fetched by a browser without an Authorization header.
	v1.GET("/transcripts/download/:token", h.Transcript.Download)

	authed := v1.Group("")
	authed.Use(middleware.JWT(deps.Auth))
	{
		authed.POST("/auth/logout", h.Auth.Logout)
		authed.POST("/auth/change-password", h.Auth.ChangePassword)
		authed.GET("/auth/me", h.Auth.Me)

		users := authed.Group("/users", requirePerm(models.PermManageUsers))
		{
			users.GET("", h.User.List)
			users.GET("/:id", h.User.Get)
			users.POST("", middleware.Audit(deps.Users, models.AuditActionUserCreate, "users"), h.User.Create)
			users.PUT("/:id", middleware.Audit(deps.Users, models.AuditActionUserUpdate, "users"), h.User.Update)
			users.DELETE("/:id", middleware.Audit(deps.Users, models.AuditActionUserDelete, "users"), h.User.Delete)
		}

		colleges := authed.Group("/colleges")
		{
			colleges.GET("", h.College.ListColleges)
			colleges.GET("/:id", h.College.GetCollege)
			colleges.POST("", requirePerm(models.PermManageReferenceData), h.College.CreateCollege)
			colleges.PUT("/:id", requirePerm(models.PermManageReferenceData), h.College.UpdateCollege)
			colleges.DELETE("/:id", requirePerm(models.PermManageReferenceData), h.College.DeleteCollege)
		}

		departments := authed.Group("/departments")
		{
			departments.GET("", h.College.ListDepartments)
			departments.GET("/:id", h.College.GetDepartment)
			departments.POST("", requirePerm(models.PermManageReferenceData), h.College.CreateDepartment)
			departments.PUT("/:id", requirePerm(models.PermManageReferenceData), h.College.UpdateDepartment)
			departments.DELETE("/:id", requirePerm(models.PermManageReferenceData), h.College.DeleteDepartment)
		}

		courses := authed.Group("/courses")
		{
			courses.GET("", h.Course.List)
			courses.GET("/:id", h.Course.Get)
			courses.POST("", requirePerm(models.PermManageReferenceData), h.Course.Create)
			courses.PUT("/:id", requirePerm(models.PermManageReferenceData), h.Course.Update)
			courses.DELETE("/:id", requirePerm(models.PermManageReferenceData), h.Course.Delete)
			courses.POST("/:id/prerequisites", requirePerm(models.PermManageReferenceData), h.Course.AddPrerequisite)
		}
		authed.DELETE("/prerequisites/:prereqId", requirePerm(models.PermManageReferenceData), h.Course.RemovePrerequisite)

		curricula := authed.Group("/curricula")
		{
			curricula.GET("", h.Curriculum.List)
			curricula.GET("/:id", h.Curriculum.Get)
			curricula.GET("/:id/credit-check", h.Curriculum.CheckCredits)
			curricula.POST("", requirePerm(models.PermManageReferenceData), h.Curriculum.Create)
			curricula.PUT("/:id", requirePerm(models.PermManageReferenceData), h.Curriculum.Update)
			curricula.DELETE("/:id", requirePerm(models.PermManageReferenceData), h.Curriculum.Delete)
			curricula.POST("/:id/courses", requirePerm(models.PermManageReferenceData), h.Curriculum.PlaceCourse)
			curricula.DELETE("/:id/courses/:courseId", requirePerm(models.PermManageReferenceData), h.Curriculum.RemoveCourse)
		}

		batches := authed.Group("/batches")
		{
			batches.GET("", h.Batch.List)
			batches.GET("/:id", h.Batch.Get)
			batches.POST("", requirePerm(models.PermManageReferenceData), h.Batch.Create)
			batches.PUT("/:id", requirePerm(models.PermManageReferenceData), h.Batch.Update)
			batches.DELETE("/:id", requirePerm(models.PermManageReferenceData), h.Batch.Delete)
		}

		terms := authed.Group("/terms")
		{
			terms.GET("", h.Term.List)
			terms.GET("/:id", h.Term.Get)
			terms.POST("", requirePerm(models.PermManageTerms), h.Term.Create)
			terms.PUT("/:id", requirePerm(models.PermManageTerms), h.Term.Update)
			terms.POST("/:id/activate", requirePerm(models.PermManageTerms), h.Term.Activate)
			terms.POST("/:id/complete", requirePerm(models.PermManageTerms), h.Term.Complete)
		}

		sections := authed.Group("/sections")
		{
			sections.GET("", h.Section.List)
			sections.GET("/:id", h.Section.Get)
			sections.POST("", requirePerm(models.PermManageSections), h.Section.Create)
			sections.PUT("/:id", requirePerm(models.PermManageSections), h.Section.Update)
			sections.DELETE("/:id", requirePerm(models.PermManageSections), h.Section.Delete)
			sections.POST("/:id/slots", requirePerm(models.PermManageSections), h.Section.AddSlot)
			sections.GET("/:id/components", h.Grade.ListComponents)
			sections.POST("/:id/components", requirePerm(models.PermRecordGrades), h.Grade.CreateComponent)
			sections.POST("/:id/publish", requirePerm(models.PermPublishGrades), h.Grade.Publish)
		}
		authed.DELETE("/slots/:slotId", requirePerm(models.PermManageSections), h.Section.RemoveSlot)

		components := authed.Group("/components", requirePerm(models.PermRecordGrades))
		{
			components.PUT("/:id", h.Grade.UpdateComponent)
			components.DELETE("/:id", h.Grade.DeleteComponent)
		}

		students := authed.Group("/students")
		{
			students.GET("", requirePerm(models.PermViewEnrollments), h.Student.List)
			students.GET("/:id", h.Student.Get)
			students.POST("", requirePerm(models.PermManageReferenceData), h.Student.Create)
			students.PUT("/:id", requirePerm(models.PermManageReferenceData), h.Student.Update)
			students.DELETE("/:id", requirePerm(models.PermManageReferenceData), h.Student.Delete)
			students.GET("/:id/schedule", h.Enrollment.Schedule)
			students.GET("/:id/gpa", h.GPA.TermGPA)
			students.GET("/:id/cgpa", h.GPA.CumulativeGPA)
			students.GET("/:id/transcript", h.GPA.Transcript)
		}

		faculty := authed.Group("/faculty")
		{
			faculty.GET("", h.Faculty.List)
			faculty.GET("/:id", h.Faculty.Get)
			faculty.POST("", requirePerm(models.PermManageReferenceData), h.Faculty.Create)
			faculty.PUT("/:id", requirePerm(models.PermManageReferenceData), h.Faculty.Update)
			faculty.DELETE("/:id", requirePerm(models.PermManageReferenceData), h.Faculty.Delete)
		}

		enrollments := authed.Group("/enrollments")
		{
			enrollments.GET("", requirePerm(models.PermViewEnrollments), h.Enrollment.List)
			enrollments.GET("/:id", h.Enrollment.Get)
			enrollments.POST("", requirePerm(models.PermEnrollStudents), h.Enrollment.Create)
			enrollments.POST("/validate", requirePerm(models.PermEnrollStudents), h.Enrollment.Validate)
			enrollments.DELETE("/:id", requirePerm(models.PermEnrollStudents), h.Enrollment.Drop)
			enrollments.GET("/:id/grades", h.Grade.GradeSheet)
			enrollments.GET("/:id/final-grade", h.Grade.FinalGrade)
			enrollments.GET("/:id/attendance", h.Attendance.Summary)
		}

		grades := authed.Group("/grades", requirePerm(models.PermRecordGrades))
		{
			grades.POST("", h.Grade.RecordGrade)
		}

		attendance := authed.Group("/attendance")
		{
			attendance.GET("", h.Attendance.List)
			attendance.POST("", requirePerm(models.PermRecordAttendance), h.Attendance.Record)
		}

		applications := authed.Group("/applications")
		{
			applications.GET("", h.Application.List)
			applications.GET("/:id", h.Application.Get)
			applications.POST("", requirePerm(models.PermApplyDepartment), h.Application.Apply)
			applications.POST("/:id/approve", requirePerm(models.PermDecideApplications), h.Application.Approve)
			applications.POST("/:id/reject", requirePerm(models.PermDecideApplications), h.Application.Reject)
			applications.POST("/:id/withdraw", requirePerm(models.PermApplyDepartment), h.Application.Withdraw)
		}

		policies := authed.Group("/policies")
		{
			policies.GET("/standing", h.Policy.GetStandingPolicy)
			policies.PUT("/standing", requirePerm(models.PermManagePolicies), h.Policy.UpdateStandingPolicy)
			policies.GET("/grade-scale", h.Policy.GetGradeScale)
			policies.PUT("/grade-scale", requirePerm(models.PermManagePolicies), h.Policy.ReplaceGradeScale)
		}

		transcripts := authed.Group("/transcripts")
		{
			transcripts.POST("/export", requirePerm(models.PermViewTranscripts), h.Transcript.Export)
			transcripts.GET("/export/jobs/:id", h.Transcript.Status)
		}

		authed.GET("/metrics/system", middleware.RBAC(string(models.RoleAdmin)), h.Metrics.Snapshot)
	}
}
