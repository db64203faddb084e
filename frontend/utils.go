package frontend

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/up-zero/gotool/mediautil"
)

// LoadCMVN 解析 am.mvn 文件
//
// 返回 negMean (均值的负数, 来自 AddShift) 和 invStd (标准差的倒数, 来自 Rescale)
func LoadCMVN(path string) ([]float32, []float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var negMean, invStd []float32
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "<LearnRateCoef>") {
			continue
		}

		// <LearnRateCoef> 0 [ v1 v2 ... ]
		parts := strings.Fields(line)
		if len(parts) < 4 {
			continue
		}
		values := make([]float32, 0, len(parts)-4)
		for _, v := range parts[3 : len(parts)-1] {
			fVal, err := strconv.ParseFloat(v, 32)
			if err != nil {
				continue
			}
			values = append(values, float32(fVal))
		}

		if negMean == nil {
			negMean = values
		} else {
			invStd = values
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}

	if len(negMean) == 0 || len(invStd) == 0 {
		return nil, nil, fmt.Errorf("未找到有效的 CMVN 数据")
	}
	if len(negMean) != len(invStd) {
		return nil, nil, fmt.Errorf("CMVN 均值维度 %d 与方差维度 %d 不一致", len(negMean), len(invStd))
	}
	return negMean, invStd, nil
}

// parseWavBytes 转换 WAV 字节流为 16kHz 单声道 float32 样本
func parseWavBytes(wavBytes []byte) ([]float32, error) {
	targetBytes, err := mediautil.ReformatWavBytes(wavBytes, SampleRate, channels, bitsPerSample)
	if err != nil {
		return nil, fmt.Errorf("无法格式化 WAV 文件: %w", err)
	}
	if len(targetBytes) < 44 {
		return nil, fmt.Errorf("WAV 数据长度 %d 小于文件头", len(targetBytes))
	}
	return mediautil.PcmBytesToFloat32(targetBytes[44:], bitsPerSample)
}
