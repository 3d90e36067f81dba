package service

import "lms-assessment/internal/domain"

// resolutionInput is everything the course rules of a special quiz may read.
type resolutionInput struct {
	Family     domain.RuleFamily
	Policy     domain.GatingPolicy
	Requested  *domain.Course     // nil when no course was requested or it does not exist
	Enrolments []domain.Enrolment // qualifying enrolments only
}

// courseRule either resolves the effective course or passes to the next rule.
type courseRule func(in resolutionInput) (int64, bool)

// specialQuizCourseRules is the resolution order for quizzes shared across
// enrolments.
var specialQuizCourseRules = []courseRule{
	requestedCourseRule,
	mainEnrolmentRule,
}

// resolveCourse runs rules in order and stops at the first that resolves.
func resolveCourse(in resolutionInput, rules ...courseRule) (int64, bool) {
	for _, rule := range rules {
		if courseID, ok := rule(in); ok {
			return courseID, true
		}
	}
	return 0, false
}

func requestedCourseRule(in resolutionInput) (int64, bool) {
	if in.Requested == nil {
		return 0, false
	}
	if in.Policy.IsExcluded(in.Family, in.Requested.CategoryID) {
		return 0, false
	}
	for _, e := range in.Enrolments {
		if e.CourseID == in.Requested.ID {
			return in.Requested.ID, true
		}
	}
	return 0, false
}

func mainEnrolmentRule(in resolutionInput) (int64, bool) {
	for _, e := range in.Enrolments {
		if !e.IsMain {
			continue
		}
		if in.Policy.IsExcluded(in.Family, e.CategoryID) {
			continue
		}
		return e.CourseID, true
	}
	return 0, false
}
