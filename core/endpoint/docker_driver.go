package endpoint

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/pkgforge/pkgforge/common/gerror"
	"github.com/pkgforge/pkgforge/common/logger"
	"github.com/pkgforge/pkgforge/common/models"
	"github.com/pkgforge/pkgforge/core/store"
)

// DockerDriver is a Driver that runs each job in a local Docker container, grounded on
// buildbeaver's runner/runtime/docker.ContainerManager (container_manager.go). Unlike that
// type, which manages containers as a long-lived service for an interactive runner, DockerDriver
// runs exactly one container per Run call and removes it on completion: the core's job model
// has no notion of a persistent build environment across jobs.
type DockerDriver struct {
	client    *client.Client
	image     string
	log       logger.Log
	container string // not read: Run and NumberOfRunningContainers use the fixed label pkgforge.job=true
}

func NewDockerDriver(cl *client.Client, image string, logFactory logger.LogFactory) *DockerDriver {
	return &DockerDriver{client: cl, image: image, log: logFactory("DockerDriver"), container: "pkgforge-job"}
}

// Run starts a container for job, streams its combined output to logs, waits for it to exit,
// and on success reads the resulting artifact bytes out of the container filesystem into
// staging. A non-zero exit code is reported as a scheduler-level error.
func (d *DockerDriver) Run(ctx context.Context, job RunnableJob, logs LogSink, staging store.Store) ([]models.ArtifactPath, error) {
	env := make([]string, 0, len(job.Env))
	for _, e := range job.Env {
		env = append(env, fmt.Sprintf("%s=%s", e.Name, e.Value))
	}

	cConfig := &container.Config{
		Image:  d.image,
		Env:    env,
		Cmd:    []string{"build", job.Job.PackageRef.String()},
		Labels: map[string]string{"pkgforge.job": "true"},
	}
	hConfig := &container.HostConfig{AutoRemove: false}
	res, err := d.client.ContainerCreate(ctx, cConfig, hConfig, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return nil, gerror.Wrap(gerror.CodeScheduler, err, "create container")
	}
	defer d.client.ContainerRemove(ctx, res.ID, types.ContainerRemoveOptions{RemoveVolumes: true, Force: true})

	if err := d.client.ContainerStart(ctx, res.ID, types.ContainerStartOptions{}); err != nil {
		return nil, gerror.Wrap(gerror.CodeScheduler, err, "start container")
	}

	reader, err := d.client.ContainerLogs(ctx, res.ID, types.ContainerLogsOptions{ShowStdout: true, ShowStderr: true, Follow: true})
	if err != nil {
		return nil, gerror.Wrap(gerror.CodeScheduler, err, "attach container logs")
	}
	defer reader.Close()
	go d.pipeLogs(reader, logs)

	statusCh, errCh := d.client.ContainerWait(ctx, res.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return nil, gerror.Wrap(gerror.CodeScheduler, err, "wait for container")
		}
	case status := <-statusCh:
		if status.StatusCode != 0 {
			return nil, gerror.Newf(gerror.CodeScheduler, "job %s exited with status %d", job.Job.PackageRef, status.StatusCode)
		}
	case <-ctx.Done():
		return nil, gerror.Wrap(gerror.CodeScheduler, ctx.Err(), "container wait canceled")
	}

	return d.collectArtifacts(ctx, res.ID, job, staging)
}

// collectArtifacts copies the container's /out directory into staging as a single tar artifact
// named after the job's package reference ("name@version.tar"); the files under /out are not
// stored as separate artifacts. The core itself is agnostic to how many outputs a job has.
func (d *DockerDriver) collectArtifacts(ctx context.Context, containerID string, job RunnableJob, staging store.Store) ([]models.ArtifactPath, error) {
	rc, _, err := d.client.CopyFromContainer(ctx, containerID, "/out")
	if err != nil {
		return nil, gerror.Wrap(gerror.CodeScheduler, err, "copy artifacts from container")
	}
	defer rc.Close()

	name := job.Job.PackageRef.String() + ".tar"
	path, err := staging.Put(ctx, name, rc)
	if err != nil {
		return nil, gerror.Wrap(gerror.CodeScheduler, err, "write artifact to staging store")
	}
	return []models.ArtifactPath{path}, nil
}

func (d *DockerDriver) pipeLogs(from io.Reader, sink LogSink) {
	stdout := &logSinkWriter{sink: sink, stream: "stdout"}
	stderr := &logSinkWriter{sink: sink, stream: "stderr"}
	if _, err := stdcopy.StdCopy(stdout, stderr, from); err != nil && err != io.EOF {
		d.log.Warnf("error piping container logs: %s", err)
	}
}

// NumberOfRunningContainers counts containers this driver has created that are still running,
// identified by the label applied at create time.
func (d *DockerDriver) NumberOfRunningContainers(ctx context.Context) (int, error) {
	fil := filters.NewArgs()
	fil.Add("label", "pkgforge.job=true")
	fil.Add("status", "running")
	list, err := d.client.ContainerList(ctx, types.ContainerListOptions{Filters: fil})
	if err != nil {
		return 0, gerror.Wrap(gerror.CodeScheduler, err, "list running containers")
	}
	return len(list), nil
}

type logSinkWriter struct {
	sink   LogSink
	stream string
}

func (w *logSinkWriter) Write(p []byte) (int, error) {
	if w.sink != nil {
		w.sink.Write(LogItem{Stream: w.stream, Message: string(p)})
	}
	return len(p), nil
}
