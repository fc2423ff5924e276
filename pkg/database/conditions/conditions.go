// Package conditions manages the status conditions of a StellarCore
package conditions

import (
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Upsert adds c to list or replaces the condition of the same type. The
// transition time only moves when the status changes. It returns true when
// the list was modified.
func Upsert(list *[]metav1.Condition, c metav1.Condition) bool {
	return meta.SetStatusCondition(list, c)
}

// Set is Upsert with the fields spelled out
func Set(list *[]metav1.Condition, condType string, status metav1.ConditionStatus, reason, message string, generation int64) bool {
	return Upsert(list, metav1.Condition{
		Type:               condType,
		Status:             status,
		Reason:             reason,
		Message:            message,
		ObservedGeneration: generation,
	})
}

// Remove deletes the condition of condType from list
func Remove(list *[]metav1.Condition, condType string) bool {
	return meta.RemoveStatusCondition(list, condType)
}

// IsTrue reports whether the condition of condType is present and True
func IsTrue(list []metav1.Condition, condType string) bool {
	return meta.IsStatusConditionTrue(list, condType)
}
