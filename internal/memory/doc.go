// Package memory keeps image decoding inside the container's memory budget.
//
// ConfigureFromEnv derives GOMEMLIMIT from MEMORY_LIMIT (set from the
// Kubernetes Downward API) and MEMORY_RATIO. Monitor samples the heap on an
// interval; the intake poller skips a cycle while the monitor reports
// IsPaused and shrinks its batch while ShouldThrottle is true.
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
package memory
