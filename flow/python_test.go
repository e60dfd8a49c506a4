package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPythonStrategy(t *testing.T) {
	t.Run("async methods, loops and exception arms", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "fastapi==0.110.0\n")
		writeFile(t, root, "repo.py", `import asyncio

from helpers import fetch_rows


class Repo:
    async def load(self, retries):
        for attempt in range(retries):
            try:
                rows = await fetch_rows()
            except TimeoutError:
                continue
            else:
                return rows
        return None

    def sync_load(self):
        return fetch_rows() if self.ready else []
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		assert.Equal(t, "python", result.Language)

		load := functionNamed(t, result, "load")
		assert.True(t, load.IsAsync)
		assert.True(t, load.IsMethod)
		assert.Equal(t, []string{"self", "retries"}, load.Parameters)
		assert.Equal(t, 3, load.Complexity)

		syncLoad := functionNamed(t, result, "sync_load")
		assert.False(t, syncLoad.IsAsync)
		assert.Equal(t, 2, syncLoad.Complexity)

		require.Len(t, result.ControlFlows, 2)
		forNode := result.ControlFlows[0]
		assert.Equal(t, FlowForLoop, forNode.FlowType)
		assert.Equal(t, "attempt in range(retries)", forNode.Condition)
		assert.Equal(t, []string{"body"}, forNode.Branches)
		tryNode := result.ControlFlows[1]
		assert.Equal(t, FlowTryExcept, tryNode.FlowType)
		assert.Equal(t, []string{"TimeoutError", "else"}, tryNode.Branches)

		var inTry, inTernary Call
		for _, c := range result.Calls {
			if c.CalleeID == "external:helpers.fetch_rows" {
				if c.CallerID == load.ID {
					inTry = c
				} else {
					inTernary = c
				}
			}
		}
		require.NotEmpty(t, inTry.CallerID)
		assert.True(t, inTry.IsLoop)
		assert.False(t, inTry.IsConditional)
		assert.Equal(t, 10, inTry.Line)

		require.NotEmpty(t, inTernary.CallerID)
		assert.True(t, inTernary.IsConditional)
		assert.False(t, inTernary.IsLoop)

		assert.Equal(t, 1, result.Statistics.AsyncFunctions)
		assert.Equal(t, 2, result.Statistics.MethodFunctions)
	})

	t.Run("self receiver resolves within the class file", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "flask==3.0.0\n")
		writeFile(t, root, "cart.py", `class Cart:
    def total(self):
        return self.subtotal() + 1

    def subtotal(self):
        return 41
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)

		total := functionNamed(t, result, "total")
		subtotal := functionNamed(t, result, "subtotal")
		calls := callsFrom(result, total.ID)
		require.Len(t, calls, 1)
		assert.Equal(t, subtotal.ID, calls[0].CalleeID)
		assert.Equal(t, CallDirect, calls[0].CallType)
	})

	t.Run("module alias call distinguishes known and unknown modules", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "flask==3.0.0\n")
		writeFile(t, root, "app.py", `import util
import requests


def run():
    util.present()
    requests.get("https://example.com")
    mystery()
`)
		writeFile(t, root, "util.py", `def helper():
    return 1
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)

		run := functionNamed(t, result, "run")
		calls := callsFrom(result, run.ID)
		require.Len(t, calls, 3)

		// util is a project module but declares no present().
		assert.Equal(t, CallUnresolved, calls[0].CallType)
		assert.Equal(t, "unresolved:util.present", calls[0].CalleeID)

		assert.Equal(t, CallExternal, calls[1].CallType)
		assert.Equal(t, "external:requests.get", calls[1].CalleeID)

		assert.Equal(t, CallUnresolved, calls[2].CallType)
		assert.Equal(t, "unresolved:mystery", calls[2].CalleeID)
	})

	t.Run("while loops keep their else branch", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "flask==3.0.0\n")
		writeFile(t, root, "poll.py", `def poll(q):
    while q.pending():
        q.drain()
    else:
        q.close()
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)

		require.Len(t, result.ControlFlows, 1)
		node := result.ControlFlows[0]
		assert.Equal(t, FlowWhileLoop, node.FlowType)
		assert.Equal(t, "q.pending()", node.Condition)
		assert.Equal(t, []string{"body", "else"}, node.Branches)

		poll := functionNamed(t, result, "poll")
		calls := callsFrom(result, poll.ID)
		require.Len(t, calls, 3)
		// the condition itself is evaluated outside the loop body
		assert.False(t, calls[0].IsLoop)
		assert.True(t, calls[1].IsLoop)
		// the else arm runs once the loop ends
		assert.False(t, calls[2].IsLoop)
		assert.True(t, calls[2].IsConditional)
	})
}
