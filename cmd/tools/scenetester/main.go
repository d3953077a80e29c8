package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/z-interrogation/backend/internal/config"
	"github.com/zhouzirui/z-interrogation/backend/internal/model/scene"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/dialogue"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/interrogation"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/narrative"
)

// scenetester 在模拟时钟上无界面地跑完一场审讯，用于检查剧本与节奏。
func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	subjectID := flag.String("subject", "night-guard", "嫌疑人 ID")
	picks := flag.String("choices", "", "依次选择的选项序号，逗号分隔；用完后总选 0")
	frame := flag.Duration("frame", cfg.Scene.FrameInterval, "模拟帧间隔")
	limit := flag.Duration("limit", 10*time.Minute, "模拟时长上限")
	seed := flag.Int64("seed", time.Now().UnixNano(), "检测条随机种子")
	meterEvery := flag.Int("meter-every", 0, "每隔多少帧打印一次检测条，0 表示只在台词开始时打印")
	flag.Parse()

	if *frame <= 0 {
		log.Fatal("-frame 必须为正数")
	}
	order, err := parsePicks(*picks)
	if err != nil {
		log.Fatalf("无法解析 -choices: %v", err)
	}

	subjects := scene.NewMemoryStore(scene.Seed())
	subject, ok := subjects.FindByID(*subjectID)
	if !ok {
		log.Fatalf("未知的嫌疑人: %s", *subjectID)
	}
	settings, err := cfg.Scene.SettingsFor(subject)
	if err != nil {
		log.Fatalf("场景配置加载失败: %v", err)
	}

	lib, err := loadScripts(cfg.Scene.ScriptDir)
	if err != nil {
		log.Fatalf("剧本加载失败: %v", err)
	}
	story, err := lib.Open(subject.ScriptID)
	if err != nil {
		log.Fatalf("剧本打开失败: %v", err)
	}

	var sc *interrogation.Scene
	sc = interrogation.NewScene(story, interrogation.SceneOptions{
		Settings:     settings,
		Anchor:       subject.Anchor(),
		MeterEnabled: cfg.Scene.MeterEnabled,
		Rand:         rand.New(rand.NewSource(*seed)),
		OnLine: func(turn dialogue.Turn) {
			name := turn.Name
			if name == "" {
				name = "-"
			}
			fmt.Printf("[%8s] %-9s %s: %s", clock(sc), turn.Speaker, name, turn.Text)
			if len(turn.Tags) > 0 {
				fmt.Printf("  #%s", strings.Join(turn.Tags, " #"))
			}
			fmt.Println()
		},
	})

	fmt.Printf("审讯 %s (%s)，剧本 %s，种子 %d\n", subject.Name, subject.Title, subject.ScriptID, *seed)
	if err := sc.Start(); err != nil {
		log.Fatalf("场景启动失败: %v", err)
	}
	printMeter(sc)

	var elapsed time.Duration
	ticks := 0
	for sc.State() != dialogue.StateFinished {
		if elapsed >= *limit {
			log.Fatalf("超过模拟时长上限 %s，当前状态 %s", *limit, sc.State())
		}

		if sc.State() == dialogue.StateAwaitingChoice {
			f := sc.Frame()
			for _, c := range f.Dialogue.Choices {
				fmt.Printf("           [%d] %s\n", c.Index, c.Text)
			}
			pick := 0
			if len(order) > 0 {
				pick, order = order[0], order[1:]
			}
			fmt.Printf("           -> 选择 %d\n", pick)
			if err := sc.Choose(pick); err != nil {
				log.Fatalf("选择失败: %v", err)
			}
			printMeter(sc)
			continue
		}

		sc.Tick(*frame)
		elapsed += *frame
		ticks++
		if *meterEvery > 0 && ticks%*meterEvery == 0 {
			printMeter(sc)
		}
	}

	sc.Close()
	fmt.Printf("审讯结束，用时 %s (%d 帧)\n", clock(sc), ticks)
	if subject.IsAndroid {
		fmt.Println("答案：仿生人")
	} else {
		fmt.Println("答案：人类")
	}
}

func loadScripts(dir string) (*narrative.Library, error) {
	if dir == "" {
		return narrative.NewLibrary()
	}
	return narrative.LoadDir(dir)
}

func parsePicks(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func clock(sc *interrogation.Scene) string {
	return (time.Duration(sc.Frame().ClockMs) * time.Millisecond).String()
}

func printMeter(sc *interrogation.Scene) {
	m := sc.Frame().Meter
	if m == nil {
		return
	}
	fmt.Fprintf(os.Stdout, "           meter %.3f target %.1f %s\n", m.Value, m.Target, m.Mode)
}
