// Command seed-catalog loads the standard animal feed catalog into the
// configured store. Intended for fresh deployments and demo environments.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"

	"stockledger/internal/config"
	"stockledger/internal/core"
)

var exitFunc = os.Exit

type seedProduct struct {
	name        string
	description string
	price       string
	stock       int
}

// The catalog mirrors the product range of the feed store this system runs:
// ruminant, poultry, and aquaculture feed lines.
var catalog = []seedProduct{
	{"علف أبقار عالي البروتين", "علف متكامل للأبقار الحلوب يحتوي على نسبة عالية من البروتين والفيتامينات لزيادة إنتاج الحليب. مصنع من أجود أنواع الحبوب والبقوليات.", "450.00", 50},
	{"علف أغنام وماعز", "خلطة علفية متوازنة للأغنام والماعز تساعد على النمو السريع وزيادة الوزن. غني بالطاقة والمعادن الضرورية.", "380.00", 75},
	{"علف دواجن تسمين", "علف تسمين للدواجن (دجاج لحم) يساعد على النمو السريع وتحسين معدل التحويل الغذائي. خالي من الهرمونات.", "320.00", 100},
	{"علف دجاج بياض", "علف مخصص للدجاج البياض لزيادة إنتاج البيض. يحتوي على نسبة عالية من الكالسيوم والبروتين.", "340.00", 90},
	{"علف خيول ومهور", "علف متكامل للخيول والمهور يحتوي على الشعير والشوفان والفيتامينات. يعطي الطاقة والنشاط.", "550.00", 30},
	{"علف أرانب", "علف مخصص للأرانب بجميع أعمارها. غني بالألياف والبروتينات النباتية اللازمة للنمو السليم.", "280.00", 60},
	{"علف جمال (إبل)", "خلطة علفية متكاملة للإبل تحتوي على الحبوب والأملاح المعدنية. مناسب للجمال في جميع الظروف المناخية.", "420.00", 40},
	{"علف عجول رضيعة", "علف بادئ للعجول الرضيعة من عمر أسبوعين. سهل الهضم ويساعد على النمو الصحي السريع.", "480.00", 35},
	{"علف مركز للماشية", "علف مركز عالي القيمة الغذائية للماشية بجميع أنواعها. يخلط مع الأعلاف الخشنة للحصول على أفضل النتائج.", "520.00", 45},
	{"علف بط وإوز", "علف مخصص للبط والإوز يساعد على النمو وزيادة الوزن. مقاوم للماء ومناسب لطريقة تغذيتهم.", "310.00", 55},
	{"علف حمام", "خلطة من الحبوب المختارة للحمام. تحتوي على الذرة والقمح والعدس والبازلاء لتغذية متكاملة.", "220.00", 80},
	{"علف أسماك (زريعة)", "علف طافي للأسماك الصغيرة (الزريعة). غني بالبروتين الحيواني والنباتي لنمو سريع وصحي.", "360.00", 70},
}

func main() {
	fs := flag.NewFlagSet("seed-catalog", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a stockledger YAML config file")
	reset := fs.Bool("reset", false, "delete existing orders and products before seeding")
	customers := fs.Bool("customers", false, "also seed the demo customer list")
	if err := fs.Parse(os.Args[1:]); err != nil {
		exitFunc(2)
		return
	}
	if err := run(*configPath, *reset, *customers, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "seed-catalog: %v\n", err)
		exitFunc(1)
		return
	}
	exitFunc(0)
}

func run(configPath string, reset, withCustomers bool, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	store, err := cfg.OpenStorage(core.NewDefaultRulesEngine())
	if err != nil {
		return err
	}
	defer closeStore(store)

	svc := core.NewService(store)
	ctx := context.Background()

	if reset {
		if err := clearLedger(ctx, svc, out); err != nil {
			return err
		}
	}

	existing := make(map[string]bool)
	for _, product := range svc.ListProducts(ctx, core.ProductFilter{}) {
		existing[product.Name] = true
	}

	seeded := 0
	total := decimal.Zero
	for _, item := range catalog {
		if existing[item.name] {
			fmt.Fprintf(out, "skipped %s (already present)\n", item.name)
			continue
		}
		price, err := decimal.NewFromString(item.price)
		if err != nil {
			return fmt.Errorf("price for %s: %w", item.name, err)
		}
		product, _, err := svc.CreateProduct(ctx, core.CreateProductInput{
			Name:        item.name,
			Description: item.description,
			Price:       price,
			Stock:       item.stock,
		})
		if err != nil {
			return fmt.Errorf("seed %s: %w", item.name, err)
		}
		seeded++
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(product.Stock))))
		fmt.Fprintf(out, "added %s (price %s, stock %d)\n", product.Name, product.Price, product.Stock)
	}
	fmt.Fprintf(out, "seeded %d products, stock value %s\n", seeded, total)

	if withCustomers {
		if err := seedCustomers(ctx, svc, out); err != nil {
			return err
		}
	}
	return nil
}

var demoCustomers = []struct {
	name  string
	phone string
}{
	{"أحمد محمد", "0501234567"},
	{"فاطمة علي", "0559876543"},
	{"خالد السعيد", "0543216789"},
	{"مريم حسن", "0507654321"},
}

func seedCustomers(ctx context.Context, svc *core.Service, out io.Writer) error {
	existing := make(map[string]bool)
	for _, customer := range svc.ListCustomers(ctx) {
		existing[customer.FullName] = true
	}
	seeded := 0
	for _, demo := range demoCustomers {
		if existing[demo.name] {
			continue
		}
		phone := demo.phone
		customer, _, err := svc.CreateCustomer(ctx, core.CreateCustomerInput{
			FullName:    demo.name,
			PhoneNumber: &phone,
		})
		if err != nil {
			return fmt.Errorf("seed customer %s: %w", demo.name, err)
		}
		seeded++
		fmt.Fprintf(out, "added customer %s\n", customer.FullName)
	}
	fmt.Fprintf(out, "seeded %d customers\n", seeded)
	return nil
}

func clearLedger(ctx context.Context, svc *core.Service, out io.Writer) error {
	orders := svc.ListOrders(ctx, core.OrderFilter{})
	for _, order := range orders {
		if _, err := svc.DeleteOrder(ctx, order.ID); err != nil {
			return fmt.Errorf("delete order %s: %w", order.ID, err)
		}
	}
	products := svc.ListProducts(ctx, core.ProductFilter{})
	for _, product := range products {
		if _, err := svc.DeleteProduct(ctx, product.ID); err != nil {
			return fmt.Errorf("delete product %s: %w", product.ID, err)
		}
	}
	fmt.Fprintf(out, "cleared %d orders and %d products\n", len(orders), len(products))
	return nil
}

func closeStore(store any) {
	if closer, ok := store.(io.Closer); ok {
		_ = closer.Close()
	}
}
