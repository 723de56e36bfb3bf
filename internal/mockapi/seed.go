package mockapi

import (
	"time"

	"github.com/jrsteele09/pcexpress-session/inventory"
)

const (
	SeedEmail    = "admin@pc-express.com"
	SeedPassword = "admin123"
)

func seedProducts() []inventory.Product {
	return []inventory.Product{
		{ID: "prd-001", Name: "Ryzen 7 7800X3D", SKU: "CPU-AMD-7800X3D", Category: "Processors", Price: 449.00, Quantity: 14, ReorderLevel: 5, SupplierID: "sup-001"},
		{ID: "prd-002", Name: "Core i7 14700K", SKU: "CPU-INT-14700K", Category: "Processors", Price: 409.00, Quantity: 4, ReorderLevel: 5, SupplierID: "sup-002"},
		{ID: "prd-003", Name: "GeForce RTX 4070 Super", SKU: "GPU-NV-4070S", Category: "Graphics Cards", Price: 629.00, Quantity: 7, ReorderLevel: 3, SupplierID: "sup-003"},
		{ID: "prd-004", Name: "Radeon RX 7800 XT", SKU: "GPU-AMD-7800XT", Category: "Graphics Cards", Price: 519.00, Quantity: 2, ReorderLevel: 3, SupplierID: "sup-001"},
		{ID: "prd-005", Name: "32GB DDR5-6000 Kit", SKU: "RAM-DDR5-32", Category: "Memory", Price: 119.00, Quantity: 38, ReorderLevel: 10, SupplierID: "sup-002"},
		{ID: "prd-006", Name: "2TB NVMe Gen4 SSD", SKU: "SSD-NVME-2TB", Category: "Storage", Price: 159.00, Quantity: 21, ReorderLevel: 8, SupplierID: "sup-003"},
		{ID: "prd-007", Name: "850W Gold PSU", SKU: "PSU-850-GOLD", Category: "Power", Price: 129.00, Quantity: 6, ReorderLevel: 6, SupplierID: "sup-002"},
	}
}

func seedSuppliers() []inventory.Supplier {
	return []inventory.Supplier{
		{ID: "sup-001", Name: "Northwind Components", Email: "orders@northwind.example", Phone: "+1-555-0101"},
		{ID: "sup-002", Name: "Silicon Source Ltd", Email: "sales@siliconsource.example", Phone: "+1-555-0102"},
		{ID: "sup-003", Name: "Pixel Distribution", Email: "trade@pixeldist.example", Phone: "+1-555-0103"},
	}
}

func seedPurchaseOrders(now time.Time) []inventory.PurchaseOrder {
	return []inventory.PurchaseOrder{
		{
			ID: "po-1001", SupplierID: "sup-001", Status: inventory.OrderPending, CreatedAt: now.Add(-48 * time.Hour),
			Lines: []inventory.OrderLine{{ProductID: "prd-004", Quantity: 6, UnitPrice: 455.00}},
		},
		{
			ID: "po-1002", SupplierID: "sup-002", Status: inventory.OrderReceived, CreatedAt: now.Add(-240 * time.Hour),
			Lines: []inventory.OrderLine{
				{ProductID: "prd-002", Quantity: 10, UnitPrice: 352.00},
				{ProductID: "prd-007", Quantity: 12, UnitPrice: 98.00},
			},
		},
	}
}
