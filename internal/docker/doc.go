// Package docker launches the Neo4j container.
//
// Two backends implement Launcher:
//   - CLIRunner shells out to the runtime binary ("docker run -d ...") and
//     propagates its output and exit status unchanged
//   - APIRunner talks to the Docker Engine API through Client, which detects
//     the daemon socket on Linux, macOS and Windows
//
// RenderShell and RenderCompose describe the same launch without
// performing it, for dry runs and for users who prefer Compose.
package docker
