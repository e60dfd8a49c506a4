package structure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJavaStructure(t *testing.T) {
	t.Run("annotated types keep their members and hierarchy", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "pom.xml", "<project></project>\n")
		writeFile(t, root, "Shop.java", `package shop;

import java.util.List;
import java.util.*;
import static java.util.Map.entry;

@Service
@Transactional("orders")
public class OrderService extends BaseService implements Auditable, Closeable {
    private static final int MAX = 10;
    private List<OrderLine> lines;
    protected String region = "eu";

    public OrderService(Repository repo) {
        this.repo = repo;
    }

    public Map<String, OrderLine> index(List<String> ids, int limit) {
        return null;
    }

    private void reload() {
    }
}

public abstract class BaseService {
    public void close() {
    }
}

interface Auditable {
    void audit(String actor);
}

public enum Status {
    OPEN,
    CLOSED;

    public boolean done() {
        return this == CLOSED;
    }
}

public record OrderLine(String sku, int qty) {
}

class Wrapper {
    static class Inner {
    }
}
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		assert.Equal(t, "java", result.Language)
		require.Len(t, result.Classes, 7)

		svc := classNamed(t, result, "OrderService")
		assert.Equal(t, "Shop:OrderService:9", svc.ID)
		assert.Equal(t, []string{"Service", `Transactional("orders")`}, svc.Decorators)
		assert.Equal(t, []string{"BaseService", "Auditable", "Closeable"}, svc.BaseClasses)
		assert.Equal(t, []Property{
			{Name: "MAX", Type: "int", Line: 10},
			{Name: "lines", Type: "List<OrderLine>", Line: 11},
			{Name: "region", Type: "String", Line: 12},
		}, svc.Properties)
		require.Len(t, svc.Methods, 3)
		assert.Equal(t, Method{Name: "OrderService", Line: 14, Parameters: []string{"repo"}}, svc.Methods[0])
		assert.Equal(t, Method{Name: "index", Line: 18, Parameters: []string{"ids", "limit"}}, svc.Methods[1])
		assert.Equal(t, Method{Name: "reload", Line: 22, Parameters: []string{}, IsPrivate: true}, svc.Methods[2])

		base := classNamed(t, result, "BaseService")
		assert.True(t, base.IsAbstract)

		audit := classNamed(t, result, "Auditable")
		assert.True(t, audit.IsInterface)
		require.Len(t, audit.Methods, 1)
		assert.Equal(t, Method{Name: "audit", Line: 32, Parameters: []string{"actor"}}, audit.Methods[0])

		status := classNamed(t, result, "Status")
		require.Len(t, status.Methods, 1)
		assert.Equal(t, "done", status.Methods[0].Name)
		assert.Empty(t, status.Properties)

		line := classNamed(t, result, "OrderLine")
		assert.Equal(t, []Property{
			{Name: "sku", Type: "String", Line: 44},
			{Name: "qty", Type: "int", Line: 44},
		}, line.Properties)

		inner := classNamed(t, result, "Inner")
		assert.Equal(t, "Shop:Inner:48", inner.ID)

		assert.ElementsMatch(t, []Relationship{
			{SourceID: svc.ID, TargetID: base.ID, Type: "inheritance"},
			{SourceID: svc.ID, TargetID: audit.ID, Type: "inheritance"},
			{SourceID: svc.ID, TargetID: line.ID, Type: "composition"},
		}, result.Relationships)
		assert.Equal(t, 1, result.Statistics.MaxInheritanceDepth)

		require.Len(t, result.Imports, 3)
		assert.Equal(t, Import{Module: "Shop", Source: "java.util", Names: []string{"List"}, Line: 3}, result.Imports[0])
		assert.Equal(t, Import{Module: "Shop", Source: "java.util", Names: []string{}, Line: 4}, result.Imports[1])
		assert.Equal(t, Import{Module: "Shop", Source: "java.util.Map", Names: []string{"entry"}, Line: 5}, result.Imports[2])
	})
}
