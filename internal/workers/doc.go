/*
Package workers sizes the intake worker pool for containerized deployments.

runtime.NumCPU reports host CPUs, while GOMAXPROCS follows the container CPU
limit, so every helper here starts from GOMAXPROCS:

	numWorkers := workers.ForMixed(8) // 1.5 per CPU, at most 8

Processing one photo decodes and resizes an image (CPU) and then moves files
and writes a catalog row (I/O), which is why the poller uses ForMixed.

# Environment Variable Override

INTAKE_WORKERS pins the count, still subject to the caller's limit:

	env:
	- name: INTAKE_WORKERS
	  value: "2"
*/
package workers
