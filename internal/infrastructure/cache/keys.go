package cache

import "fmt"

// Схема ключей. Вложенные ключи глав нужны сканеру для обратного
// поиска "глава -> курс".
func CourseKey(courseID string) string { return "course:" + courseID }
func StudentKey(studentID string) string { return "student:" + studentID }

func ChapterKey(courseID, chapterID string) string {
	return fmt.Sprintf("course:%s:chapters:%s", courseID, chapterID)
}

func ChapterPattern(courseID string) string {
	return fmt.Sprintf("course:%s:chapters:*", courseID)
}

func VideosKey(chapterID string) string { return "course_videos:" + chapterID }
func TagsKey(courseID string) string { return "course_tags:" + courseID }
func BenefitsKey(courseID string) string { return "course_benefits:" + courseID }
func PurchasersKey(courseID string) string { return "course_purchases:" + courseID }

func StudentPurchasesKey(studentID string) string {
	return "student_purchases:" + studentID
}

func SubscriptionKey(studentID string) string {
	return "student_subscription:" + studentID
}

func StateKey(studentID, courseID string) string {
	return fmt.Sprintf("student_state:%s:course:%s", studentID, courseID)
}
